package connection

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/exp/maps"

	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
)

// extractFields is the per-packet field set the extractor asks the capture
// tool for, tab-separated in this order.
var extractFields = []string{
	"tcp.stream",
	"frame.time_epoch",
	"ip.src",
	"tcp.srcport",
	"ip.dst",
	"tcp.dstport",
	"tcp.flags.syn",
	"tcp.flags.ack",
	"ip.id",
	"tcp.len",
	"tcp.options",
	"tcp.payload",
}

// DefaultPayloadPrefix bounds how many leading payload bytes per direction
// feed the payload hash.
const DefaultPayloadPrefix = 64

// Extractor runs a field-extraction pass over a capture and aggregates the
// per-packet lines into TCPConnection records. Tool output is consumed as a
// stream, so arbitrarily large captures never materialise in memory.
type Extractor struct {
	Invoker       *toolinvoke.Invoker
	Timeout       time.Duration
	PayloadPrefix int

	skipped int
}

// Skipped reports how many malformed field lines the last Extract pass
// dropped.
func (e *Extractor) Skipped() int { return e.skipped }

// Extract returns every TCP connection observed in the capture, ordered by
// stream ID. Connections with first_ts > last_ts or zero packets are never
// emitted.
func (e *Extractor) Extract(ctx context.Context, capturePath string) ([]TCPConnection, error) {
	args := []string{"-r", capturePath, "-T", "fields", "-E", "separator=\t"}
	for _, f := range extractFields {
		args = append(args, "-e", f)
	}
	args = append(args, "-Y", "tcp")

	printer.Debugf("extracting TCP connection records from %s\n", capturePath)

	agg := newAggregator(e.payloadPrefix())
	e.skipped = 0
	err := e.Invoker.InvokeStream(ctx, "tshark", args, e.Timeout, func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			rec, ok := parseRecord(line)
			if !ok {
				e.skipped++
				continue
			}
			agg.add(rec)
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}

	if e.skipped > 0 {
		printer.Debugf("skipped %d malformed field lines for %s\n", e.skipped, capturePath)
	}

	return agg.finalize(), nil
}

func (e *Extractor) payloadPrefix() int {
	if e.PayloadPrefix > 0 {
		return e.PayloadPrefix
	}
	return DefaultPayloadPrefix
}

// packetRecord is one parsed field line.
type packetRecord struct {
	streamID int
	ts       float64
	srcIP    string
	srcPort  int
	dstIP    string
	dstPort  int
	syn      bool
	ack      bool
	ipid     uint16
	hasIPID  bool
	tcpLen   int
	options  string
	payload  string
}

const recordFieldCount = 12

func parseRecord(line string) (packetRecord, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < recordFieldCount {
		return packetRecord{}, false
	}

	streamID, err := strconv.Atoi(parts[0])
	if err != nil {
		return packetRecord{}, false
	}
	ts, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return packetRecord{}, false
	}
	srcPort, err := strconv.Atoi(parts[3])
	if err != nil {
		return packetRecord{}, false
	}
	dstPort, err := strconv.Atoi(parts[5])
	if err != nil {
		return packetRecord{}, false
	}

	rec := packetRecord{
		streamID: streamID,
		ts:       ts,
		srcIP:    parts[2],
		srcPort:  srcPort,
		dstIP:    parts[4],
		dstPort:  dstPort,
		syn:      parseBoolFlag(parts[6]),
		ack:      parseBoolFlag(parts[7]),
		options:  strings.ToLower(parts[10]),
		payload:  parts[11],
	}

	if parts[8] != "" {
		if id, err := parseIPID(parts[8]); err == nil {
			rec.ipid = id
			rec.hasIPID = true
		}
	}
	if parts[9] != "" {
		if n, err := strconv.Atoi(parts[9]); err == nil {
			rec.tcpLen = n
		}
	}

	return rec, true
}

// parseBoolFlag accepts the "1"/"0" and "True"/"False" spellings different
// tool versions emit.
func parseBoolFlag(s string) bool {
	return s == "1" || s == "True" || s == "true"
}

// parseIPID accepts "0x1234" hex and bare decimal spellings.
func parseIPID(s string) (uint16, error) {
	// Multi-value lines (tunneled IP) keep only the outermost value.
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	return uint16(v), err
}

// streamAgg accumulates one stream's packets until finalize resolves
// client/server orientation and emits the record.
type streamAgg struct {
	streamID int

	// Orientation of the first packet seen.
	firstSrcIP   string
	firstSrcPort int
	firstDstIP   string
	firstDstPort int

	// SYN-without-ACK sender, when captured.
	synSrcKey  string
	synOptions string

	firstTS float64
	lastTS  float64

	packets    int
	totalBytes int64

	// Keyed by "ip:port" endpoint.
	bytesByEndpoint   map[string]int64
	packetsByEndpoint map[string]int
	ipidsByEndpoint   map[string]map[uint16]bool
	payloadPrefix     map[string]string
}

type aggregator struct {
	prefixLen int
	streams   map[int]*streamAgg
}

func newAggregator(prefixLen int) *aggregator {
	return &aggregator{prefixLen: prefixLen, streams: make(map[int]*streamAgg)}
}

func endpointKey(ip string, port int) string {
	return ip + ":" + strconv.Itoa(port)
}

func (a *aggregator) add(rec packetRecord) {
	st, ok := a.streams[rec.streamID]
	if !ok {
		st = &streamAgg{
			streamID:        rec.streamID,
			firstSrcIP:      rec.srcIP,
			firstSrcPort:    rec.srcPort,
			firstDstIP:      rec.dstIP,
			firstDstPort:    rec.dstPort,
			firstTS:         rec.ts,
			lastTS:          rec.ts,
			bytesByEndpoint:   make(map[string]int64),
			packetsByEndpoint: make(map[string]int),
			ipidsByEndpoint:   make(map[string]map[uint16]bool),
			payloadPrefix:     make(map[string]string),
		}
		a.streams[rec.streamID] = st
	}

	if rec.ts < st.firstTS {
		st.firstTS = rec.ts
	}
	if rec.ts > st.lastTS {
		st.lastTS = rec.ts
	}

	src := endpointKey(rec.srcIP, rec.srcPort)

	st.packets++
	st.totalBytes += int64(rec.tcpLen)
	st.bytesByEndpoint[src] += int64(rec.tcpLen)
	st.packetsByEndpoint[src]++

	if rec.hasIPID {
		set, ok := st.ipidsByEndpoint[src]
		if !ok {
			set = make(map[uint16]bool)
			st.ipidsByEndpoint[src] = set
		}
		set[rec.ipid] = true
	}

	if rec.syn && !rec.ack && st.synSrcKey == "" {
		st.synSrcKey = src
		st.synOptions = canonicalizeOptions(rec.options)
	}

	if rec.payload != "" {
		if _, ok := st.payloadPrefix[src]; !ok {
			st.payloadPrefix[src] = truncateHex(rec.payload, a.prefixLen)
		}
	}
}

// canonicalizeOptions produces a deterministic form of the SYN's TCP options
// hex string: lowercased with separator noise removed.
func canonicalizeOptions(options string) string {
	options = strings.ToLower(options)
	options = strings.ReplaceAll(options, ":", "")
	options = strings.ReplaceAll(options, ",", "")
	return options
}

// truncateHex clips a hex-encoded payload to the first n bytes.
func truncateHex(hexStr string, n int) string {
	hexStr = strings.ReplaceAll(hexStr, ":", "")
	if len(hexStr) > 2*n {
		return hexStr[:2*n]
	}
	return hexStr
}

func (a *aggregator) finalize() []TCPConnection {
	ids := maps.Keys(a.streams)
	sort.Ints(ids)

	conns := make([]TCPConnection, 0, len(ids))
	for _, id := range ids {
		st := a.streams[id]
		if st.packets == 0 {
			continue
		}
		conns = append(conns, st.resolve())
	}
	return conns
}

// resolve fixes client/server orientation and assembles the final record.
func (st *streamAgg) resolve() TCPConnection {
	firstKey := endpointKey(st.firstSrcIP, st.firstSrcPort)

	clientIP, clientPort := st.firstSrcIP, st.firstSrcPort
	serverIP, serverPort := st.firstDstIP, st.firstDstPort

	switch {
	case st.synSrcKey != "":
		// SYN sender is the client.
		if st.synSrcKey != firstKey {
			clientIP, clientPort, serverIP, serverPort = serverIP, serverPort, clientIP, clientPort
		}
	case ClassifyPort(st.firstSrcPort) == PortWellKnown && ClassifyPort(st.firstDstPort) != PortWellKnown:
		// Well-known port identifies the server side.
		clientIP, clientPort, serverIP, serverPort = serverIP, serverPort, clientIP, clientPort
	case ClassifyPort(st.firstDstPort) == PortWellKnown:
		// Orientation already correct: destination is the server.
	case st.firstDstPort > st.firstSrcPort:
		// No SYN, no well-known port: higher port is the client.
		clientIP, clientPort, serverIP, serverPort = serverIP, serverPort, clientIP, clientPort
	}

	clientKey := endpointKey(clientIP, clientPort)
	serverKey := endpointKey(serverIP, serverPort)

	ipids := st.ipidsByEndpoint[clientKey]
	if ipids == nil {
		ipids = make(map[uint16]bool)
	}

	return TCPConnection{
		StreamID:        st.streamID,
		ClientIP:        clientIP,
		ServerIP:        serverIP,
		ClientPort:      clientPort,
		ServerPort:      serverPort,
		FirstTS:         st.firstTS,
		LastTS:          st.lastTS,
		TotalBytes:      st.totalBytes,
		TotalPackets:    st.packets,
		ClientBytes:     st.bytesByEndpoint[clientKey],
		ServerBytes:     st.bytesByEndpoint[serverKey],
		ClientPackets:   st.packetsByEndpoint[clientKey],
		ServerPackets:   st.packetsByEndpoint[serverKey],
		IPIDSet:         ipids,
		SynOptions:      st.synOptions,
		PayloadHash:     hashPayloads(st.payloadPrefix[clientKey], st.payloadPrefix[serverKey]),
		ClientPortClass: ClassifyPort(clientPort),
	}
}

// hashPayloads produces the stable per-connection payload fingerprint: the
// leading client-direction bytes concatenated with the leading
// server-direction bytes. Empty when neither direction carried payload.
func hashPayloads(clientPrefix, serverPrefix string) string {
	if clientPrefix == "" && serverPrefix == "" {
		return ""
	}
	h := xxhash.New64()
	h.WriteString(clientPrefix)
	h.Write([]byte{0})
	h.WriteString(serverPrefix)
	return fmt.Sprintf("%016x", h.Sum64())
}
