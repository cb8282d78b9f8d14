package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rickypin/capmaster/internal/report"
)

// zeroWindowModule counts TCP zero-window events per connection 4-tuple and
// ranks connections by severity.
type zeroWindowModule struct{}

func (zeroWindowModule) Name() string                { return "tcp_zero_window" }
func (zeroWindowModule) OutputSuffix() string        { return "tcp-zero-window.txt" }
func (zeroWindowModule) RequiredProtocols() []string { return []string{"tcp"} }

func (zeroWindowModule) BuildArgs(string) []string {
	return []string{
		"-Y", "tcp.analysis.zero_window",
		"-T", "fields",
		"-e", "ip.src",
		"-e", "tcp.srcport",
		"-e", "ip.dst",
		"-e", "tcp.dstport",
	}
}

const (
	zeroWindowHighThreshold   = 50
	zeroWindowMediumThreshold = 10
	zeroWindowHighlightLimit  = 5
)

func zeroWindowSeverity(count int) string {
	switch {
	case count >= zeroWindowHighThreshold:
		return "High"
	case count >= zeroWindowMediumThreshold:
		return "Medium"
	default:
		return "Low"
	}
}

func (zeroWindowModule) PostProcess(raw string, _ report.Format) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "Zero Window Overview\nMetric,Value\nTotal Events,0\n", nil
	}

	counts := make(map[string]int)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		tuple := strings.TrimSpace(line)
		if tuple != "" {
			counts[tuple]++
		}
	}

	type entry struct {
		tuple string
		count int
	}
	sorted := make([]entry, 0, len(counts))
	total := 0
	for tuple, count := range counts {
		sorted = append(sorted, entry{tuple, count})
		total += count
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].tuple < sorted[j].tuple
	})

	severityEvents := make(map[string]int)
	severityConns := map[string][]entry{}
	for _, e := range sorted {
		sev := zeroWindowSeverity(e.count)
		severityEvents[sev] += e.count
		severityConns[sev] = append(severityConns[sev], e)
	}

	var b strings.Builder
	b.WriteString("Zero Window Overview\n")
	b.WriteString("Metric,Value\n")
	fmt.Fprintf(&b, "Total Events,%d\n", total)
	fmt.Fprintf(&b, "Unique Connections,%d\n\n", len(sorted))

	b.WriteString("Severity Summary\n")
	b.WriteString("Severity,Events,Connections\n")
	for _, sev := range []string{"High", "Medium", "Low"} {
		fmt.Fprintf(&b, "%s,%d,%d\n", sev, severityEvents[sev], len(severityConns[sev]))
	}

	var highlights []entry
	var highlightSevs []string
	for _, sev := range []string{"High", "Medium", "Low"} {
		for _, e := range severityConns[sev] {
			highlights = append(highlights, e)
			highlightSevs = append(highlightSevs, sev)
			if len(highlights) >= zeroWindowHighlightLimit {
				break
			}
		}
		if len(highlights) >= zeroWindowHighlightLimit {
			break
		}
	}

	if len(highlights) > 0 {
		b.WriteString("\nHighlighted Connections\n")
		b.WriteString("Connection,Count,Severity\n")
		for i, e := range highlights {
			fmt.Fprintf(&b, "%s,%d,%s\n", e.tuple, e.count, highlightSevs[i])
		}
	}

	return b.String(), nil
}
