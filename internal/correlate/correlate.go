// Package correlate drives the two-capture commands: match, compare,
// streamdiff, and topology. It extracts connection records from both sides,
// runs the matcher, and renders each command's report.
package correlate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rickypin/capmaster/internal/connection"
	"github.com/rickypin/capmaster/internal/match"
	"github.com/rickypin/capmaster/internal/report"
	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
)

// Args parameterizes one correlation run over two captures.
type Args struct {
	CaptureA string
	CaptureB string

	Invoker *toolinvoke.Invoker
	Timeout time.Duration

	Match match.Config

	// Output file for the primary report; empty means stdout.
	Out    string
	Format report.Format
}

// Correlation bundles the extracted connections and the match result for
// downstream report rendering.
type Correlation struct {
	CaptureA string
	CaptureB string
	ConnsA   []connection.TCPConnection
	ConnsB   []connection.TCPConnection
	Result   *match.Result
}

// Run extracts both sides and matches them. An extraction failure on either
// side is fatal: correlation is meaningless with one side missing.
func Run(ctx context.Context, args Args) (*Correlation, error) {
	ext := &connection.Extractor{Invoker: args.Invoker, Timeout: args.Timeout}

	connsA, err := ext.Extract(ctx, args.CaptureA)
	if err != nil {
		return nil, errors.Wrapf(err, "extracting connections from %s", args.CaptureA)
	}
	printer.Infof("extracted %d TCP connection(s) from %s\n", len(connsA), args.CaptureA)

	connsB, err := ext.Extract(ctx, args.CaptureB)
	if err != nil {
		return nil, errors.Wrapf(err, "extracting connections from %s", args.CaptureB)
	}
	printer.Infof("extracted %d TCP connection(s) from %s\n", len(connsB), args.CaptureB)

	result, err := match.Match(ctx, connsA, connsB, args.Match)
	if err != nil {
		return nil, err
	}

	return &Correlation{
		CaptureA: args.CaptureA,
		CaptureB: args.CaptureB,
		ConnsA:   connsA,
		ConnsB:   connsB,
		Result:   result,
	}, nil
}

// WriteMatchReport renders and writes the matched-connections report.
func WriteMatchReport(c *Correlation, out string, format report.Format) error {
	body := renderMatchReport(c)
	return report.Write(out, "matched_connections", report.Render("Matched connections", body, format))
}

func renderMatchReport(c *Correlation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Capture A: %s (%d connections)\n", c.CaptureA, c.Result.Stats.TotalA)
	fmt.Fprintf(&b, "Capture B: %s (%d connections)\n\n", c.CaptureB, c.Result.Stats.TotalB)

	fmt.Fprintf(&b, "%-8s %-8s %-28s %-28s %-7s %-10s %s\n",
		"StreamA", "StreamB", "Client", "Server", "Score", "Confidence", "Evidence")
	b.WriteString(strings.Repeat("-", 110))
	b.WriteByte('\n')

	for _, p := range c.Result.Pairs {
		fmt.Fprintf(&b, "%-8d %-8d %-28s %-28s %-7.3f %-10s %s\n",
			p.A.StreamID, p.B.StreamID,
			p.A.ClientEndpoint(), p.A.ServerEndpoint(),
			p.Score, p.Confidence, renderEvidence(p.Evidence))
	}

	s := c.Result.Stats
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Matched pairs: %d\n", s.Matched)
	fmt.Fprintf(&b, "Unmatched A: %d  Unmatched B: %d\n", s.UnmatchedA, s.UnmatchedB)
	fmt.Fprintf(&b, "Match rate A: %.1f%%  Match rate B: %.1f%%\n", s.MatchRateA*100, s.MatchRateB*100)
	fmt.Fprintf(&b, "Average score: %.3f\n", s.AvgScore)

	return b.String()
}

func renderEvidence(evidence map[string]float64) string {
	keys := make([]string, 0, len(evidence))
	for k := range evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, evidence[k]))
	}
	return strings.Join(parts, " ")
}
