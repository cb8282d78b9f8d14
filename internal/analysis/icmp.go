package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rickypin/capmaster/internal/report"
)

// icmpStatsModule decodes ICMP type/code pairs into readable labels and, for
// error messages, surfaces the embedded TCP/UDP flow the error refers to.
type icmpStatsModule struct{}

func (icmpStatsModule) Name() string                { return "icmp_stats" }
func (icmpStatsModule) OutputSuffix() string        { return "icmp-messages.txt" }
func (icmpStatsModule) RequiredProtocols() []string { return []string{"icmp"} }

func (icmpStatsModule) BuildArgs(string) []string {
	return []string{
		"-Y", "icmp",
		"-T", "fields",
		"-e", "icmp.type",
		"-e", "icmp.code",
		"-e", "ip.proto",
		"-e", "ip.src",
		"-e", "tcp.srcport",
		"-e", "udp.srcport",
		"-e", "ip.dst",
		"-e", "tcp.dstport",
		"-e", "udp.dstport",
		"-E", "occurrence=l",
		"-E", "separator=,",
	}
}

var icmpTypeNames = map[string]string{
	"0:0":  "Echo Reply",
	"3:0":  "Net Unreachable",
	"3:1":  "Host Unreachable",
	"3:2":  "Protocol Unreachable",
	"3:3":  "Port Unreachable",
	"3:4":  "Fragmentation Needed",
	"3:5":  "Source Route Failed",
	"3:6":  "Net Unknown",
	"3:7":  "Host Unknown",
	"3:9":  "Net Prohibited",
	"3:10": "Host Prohibited",
	"3:13": "Communication Prohibited",
	"4:0":  "Source Quench",
	"5:0":  "Redirect Network",
	"5:1":  "Redirect Host",
	"8:0":  "Echo Request",
	"9:0":  "Router Advertisement",
	"10:0": "Router Solicitation",
	"11:0": "TTL Exceeded",
	"11:1": "Fragment Reassembly Timeout",
	"12:0": "IP Header Error",
	"13:0": "Timestamp Request",
	"14:0": "Timestamp Reply",
}

// ICMP types carrying the header of the original datagram.
var icmpTypesWithEmbed = map[string]bool{"3": true, "4": true, "5": true, "11": true, "12": true}

var ipProtoNames = map[string]string{"1": "ICMP", "6": "TCP", "17": "UDP"}

func icmpLabel(tcKey string) string {
	desc, ok := icmpTypeNames[tcKey]
	parts := strings.SplitN(tcKey, ":", 2)
	if !ok {
		desc = fmt.Sprintf("Type %s Code %s", parts[0], parts[1])
	}
	return fmt.Sprintf("[%s/%s] %s", parts[0], parts[1], desc)
}

func (icmpStatsModule) PostProcess(raw string, _ report.Format) (string, error) {
	type errKey struct {
		tc, proto, src, dst string
	}
	errorMsgs := make(map[errKey]int)
	infoMsgs := make(map[string]int)

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 9 {
			continue
		}

		icmpType, icmpCode, proto := parts[0], parts[1], parts[2]
		srcIP, tcpSport, udpSport := parts[3], parts[4], parts[5]
		dstIP, tcpDport, udpDport := parts[6], parts[7], parts[8]

		if icmpType == "" {
			continue
		}
		tcKey := icmpType + ":" + icmpCode

		if icmpTypesWithEmbed[icmpType] {
			sport := tcpSport
			if sport == "" {
				sport = udpSport
			}
			dport := tcpDport
			if dport == "" {
				dport = udpDport
			}
			if sport != "" && dport != "" {
				protoName, ok := ipProtoNames[proto]
				if !ok {
					protoName = "Proto" + proto
				}
				errorMsgs[errKey{tcKey, protoName, srcIP + ":" + sport, dstIP + ":" + dport}]++
			}
		} else {
			infoMsgs[tcKey]++
		}
	}

	var lines []string

	if len(errorMsgs) > 0 {
		lines = append(lines, "ICMP error messages with embedded protocol info:\n")
		lines = append(lines, fmt.Sprintf("%-30s %-8s %-40s Count", "ICMP Type/Code", "Protocol", "Embedded 5-tuple"))
		lines = append(lines, strings.Repeat("-", 92))

		keys := make([]errKey, 0, len(errorMsgs))
		for k := range errorMsgs {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if a.tc != b.tc {
				return a.tc < b.tc
			}
			if a.proto != b.proto {
				return a.proto < b.proto
			}
			if a.src != b.src {
				return a.src < b.src
			}
			return a.dst < b.dst
		})
		for _, k := range keys {
			tupleStr := k.src + " -> " + k.dst
			lines = append(lines, fmt.Sprintf("%-30s %-8s %-40s %d", icmpLabel(k.tc), k.proto, tupleStr, errorMsgs[k]))
		}
	}

	if len(infoMsgs) > 0 {
		if len(errorMsgs) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "ICMP informational messages:\n")
		lines = append(lines, fmt.Sprintf("%-30s Count", "ICMP Type/Code"))
		lines = append(lines, strings.Repeat("-", 43))

		keys := make([]string, 0, len(infoMsgs))
		for k := range infoMsgs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%-30s %d", icmpLabel(k), infoMsgs[k]))
		}
	}

	return strings.Join(lines, "\n"), nil
}
