// Package analyze drives the analyze and comparative-analysis commands on
// top of the analysis module registry and dispatcher.
package analyze

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/exp/maps"

	"github.com/rickypin/capmaster/internal/analysis"
	"github.com/rickypin/capmaster/internal/report"
	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
)

// Args parameterizes one analysis run over a single capture.
type Args struct {
	Capture   string
	Invoker   *toolinvoke.Invoker
	Registry  *analysis.Registry
	OutputDir string
	Format    report.Format
	Workers   int
	Timeout   time.Duration
}

// Run detects the capture's protocols once, then dispatches every
// applicable analysis module. Returns the per-module results; the caller
// maps "no module succeeded" onto the process exit code.
func Run(ctx context.Context, args Args) ([]analysis.ModuleResult, error) {
	detected, err := analysis.DetectProtocols(ctx, args.Invoker, args.Timeout, args.Capture)
	if err != nil {
		return nil, err
	}

	names := maps.Keys(detected)
	sort.Strings(names)
	printer.Infof("detected protocols in %s: %s\n", args.Capture, strings.Join(names, ", "))

	d := &analysis.Dispatcher{
		Invoker:  args.Invoker,
		Registry: args.Registry,
		Workers:  args.Workers,
		Timeout:  args.Timeout,
	}
	return d.Dispatch(ctx, args.Capture, detected, args.OutputDir, args.Format)
}

// RunComparative analyzes two captures side by side, writing each side's
// module outputs into its own subdirectory, and produces a summary report
// of which modules ran and how their outcomes differ.
func RunComparative(ctx context.Context, argsA, argsB Args, out string, format report.Format) error {
	argsA.OutputDir = filepath.Join(argsA.OutputDir, "side-a")
	argsB.OutputDir = filepath.Join(argsB.OutputDir, "side-b")

	resultsA, err := Run(ctx, argsA)
	if err != nil {
		return err
	}
	resultsB, err := Run(ctx, argsB)
	if err != nil {
		return err
	}

	body := renderComparative(argsA.Capture, argsB.Capture, resultsA, resultsB)
	return report.Write(out, "comparative_analysis", report.Render("Comparative analysis", body, format))
}

func renderComparative(captureA, captureB string, resultsA, resultsB []analysis.ModuleResult) string {
	byModuleA := resultsByModule(resultsA)
	byModuleB := resultsByModule(resultsB)

	names := make(map[string]bool)
	for name := range byModuleA {
		names[name] = true
	}
	for name := range byModuleB {
		names[name] = true
	}
	sorted := maps.Keys(names)
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "Capture A: %s\n", captureA)
	fmt.Fprintf(&b, "Capture B: %s\n\n", captureB)

	fmt.Fprintf(&b, "%-24s %-12s %-12s %s\n", "Module", "Side A", "Side B", "Note")
	b.WriteString(strings.Repeat("-", 72))
	b.WriteByte('\n')

	for _, name := range sorted {
		stateA, okA := moduleState(byModuleA, name)
		stateB, okB := moduleState(byModuleB, name)

		note := ""
		switch {
		case okA && !okB:
			note = "only applicable to A"
		case okB && !okA:
			note = "only applicable to B"
		case stateA != stateB:
			note = "outcome differs"
		}
		fmt.Fprintf(&b, "%-24s %-12s %-12s %s\n", name, stateA, stateB, note)
	}

	return b.String()
}

func resultsByModule(results []analysis.ModuleResult) map[string]analysis.ModuleResult {
	out := make(map[string]analysis.ModuleResult, len(results))
	for _, r := range results {
		out[r.Module] = r
	}
	return out
}

func moduleState(byModule map[string]analysis.ModuleResult, name string) (string, bool) {
	r, ok := byModule[name]
	if !ok {
		return "skipped", false
	}
	if r.Err != nil {
		return "failed", true
	}
	return "ok", true
}
