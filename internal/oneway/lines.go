package oneway

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// fieldCount is the number of tab-separated fields a valid packet line
// carries: stream, src ip, src port, dst ip, dst port, ack, tcp len.
const fieldCount = 7

// ParseLine parses one tab-separated packet summary line. ok is false for
// lines with the wrong field count or unparseable integers; these are
// silently skippable by the caller via the Detector's Skipped counter.
func ParseLine(line string) (PacketInfo, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < fieldCount {
		return PacketInfo{}, false
	}

	streamID, err := strconv.Atoi(parts[0])
	if err != nil {
		return PacketInfo{}, false
	}
	srcPort, err := strconv.Atoi(parts[2])
	if err != nil {
		return PacketInfo{}, false
	}
	dstPort, err := strconv.Atoi(parts[4])
	if err != nil {
		return PacketInfo{}, false
	}

	ack := 0
	if parts[5] != "" {
		if ack, err = strconv.Atoi(parts[5]); err != nil {
			return PacketInfo{}, false
		}
	}
	tcpLen := 0
	if parts[6] != "" {
		if tcpLen, err = strconv.Atoi(parts[6]); err != nil {
			return PacketInfo{}, false
		}
	}

	return PacketInfo{
		StreamID: streamID,
		SrcIP:    parts[1],
		SrcPort:  srcPort,
		DstIP:    parts[3],
		DstPort:  dstPort,
		Ack:      ack,
		TCPLen:   tcpLen,
	}, true
}

// Feed reads tab-separated packet lines from r and adds each valid one to
// the detector, tracking the invalid-line count in d.skipped.
func (d *Detector) Feed(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		info, ok := ParseLine(line)
		if !ok {
			d.skipped++
			continue
		}
		d.AddPacket(info)
	}
	return scanner.Err()
}
