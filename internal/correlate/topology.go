package correlate

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/rickypin/capmaster/internal/report"
)

// WriteTopologyReport renders the observation-point topology: the hosts
// seen at each hop and the client->server edges, annotated with whether the
// edge was correlated across both captures.
func WriteTopologyReport(c *Correlation, out string, format report.Format) error {
	body := renderTopologyReport(c)
	return report.Write(out, "topology", report.Render("Topology", body, format))
}

type topoEdge struct {
	client string
	server string
}

func renderTopologyReport(c *Correlation) string {
	hostsA := make(map[string]bool)
	hostsB := make(map[string]bool)
	edges := make(map[topoEdge]int)
	correlated := make(map[topoEdge]bool)

	for i := range c.ConnsA {
		conn := &c.ConnsA[i]
		hostsA[conn.ClientIP] = true
		hostsA[conn.ServerIP] = true
		edges[topoEdge{conn.ClientIP, conn.ServerIP}]++
	}
	for i := range c.ConnsB {
		conn := &c.ConnsB[i]
		hostsB[conn.ClientIP] = true
		hostsB[conn.ServerIP] = true
		edges[topoEdge{conn.ClientIP, conn.ServerIP}]++
	}
	for _, p := range c.Result.Pairs {
		correlated[topoEdge{p.A.ClientIP, p.A.ServerIP}] = true
		correlated[topoEdge{p.B.ClientIP, p.B.ServerIP}] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Observation point A: %s\n", c.CaptureA)
	fmt.Fprintf(&b, "Observation point B: %s\n\n", c.CaptureB)

	writeHostList(&b, "Hosts at A", hostsA)
	writeHostList(&b, "Hosts at B", hostsB)

	b.WriteString("Edges (client -> server):\n")
	sortedEdges := maps.Keys(edges)
	sort.Slice(sortedEdges, func(i, j int) bool {
		if sortedEdges[i].client != sortedEdges[j].client {
			return sortedEdges[i].client < sortedEdges[j].client
		}
		return sortedEdges[i].server < sortedEdges[j].server
	})
	for _, e := range sortedEdges {
		marker := ""
		if correlated[e] {
			marker = "  [correlated across hops]"
		}
		fmt.Fprintf(&b, "  %s -> %s  (%d connection(s))%s\n", e.client, e.server, edges[e], marker)
	}

	b.WriteByte('\n')
	fmt.Fprintf(&b, "Correlated connection pairs: %d\n", len(c.Result.Pairs))

	return b.String()
}

func writeHostList(b *strings.Builder, title string, hosts map[string]bool) {
	names := maps.Keys(hosts)
	sort.Strings(names)
	fmt.Fprintf(b, "%s (%d):\n", title, len(names))
	for _, h := range names {
		fmt.Fprintf(b, "  %s\n", h)
	}
	b.WriteByte('\n')
}
