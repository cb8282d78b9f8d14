package analysis

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/rickypin/capmaster/internal/report"
	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
)

// Dispatcher runs the executable module set against one capture, writing one
// output file plus sidecar metadata per successful module. Modules share no
// state and run concurrently up to Workers.
type Dispatcher struct {
	Invoker  *toolinvoke.Invoker
	Registry *Registry
	Workers  int
	Timeout  time.Duration
}

// ModuleResult records one module's outcome within a dispatch.
type ModuleResult struct {
	Module     string
	OutputPath string
	Err        error
}

// Succeeded reports whether at least one module produced output.
func Succeeded(results []ModuleResult) bool {
	for _, r := range results {
		if r.Err == nil {
			return true
		}
	}
	return false
}

// Dispatch invokes every module whose protocol requirements intersect
// detected. A missing field-extraction tool aborts the whole dispatch;
// per-module execution or post-processing failures are recorded and the
// remaining modules continue. Output files appear atomically or not at all.
func (d *Dispatcher) Dispatch(ctx context.Context, capturePath string, detected map[string]bool, outputDir string, format report.Format) ([]ModuleResult, error) {
	// Resolve once up front so a missing tool fails the dispatch before any
	// module runs, rather than failing every module individually.
	if _, err := d.Invoker.Resolve("tshark"); err != nil {
		return nil, err
	}

	modules := d.Registry.Executable(detected)
	if len(modules) == 0 {
		printer.Warningf("no analysis modules applicable to %s\n", capturePath)
		return nil, nil
	}

	stem := strings.TrimSuffix(filepath.Base(capturePath), filepath.Ext(capturePath))

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var results []ModuleResult

	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers)
	for _, m := range modules {
		m := m
		p.Go(func(ctx context.Context) error {
			res := d.runModule(ctx, m, capturePath, outputDir, stem, format)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return results, err
	}

	// Deterministic result order regardless of scheduling.
	ordered := make([]ModuleResult, 0, len(results))
	for _, m := range modules {
		for _, r := range results {
			if r.Module == m.Name() {
				ordered = append(ordered, r)
				break
			}
		}
	}
	return ordered, nil
}

func (d *Dispatcher) runModule(ctx context.Context, m Module, capturePath, outputDir, stem string, format report.Format) ModuleResult {
	args := append([]string{"-r", capturePath}, m.BuildArgs(capturePath)...)

	res, err := d.Invoker.Invoke(ctx, "tshark", args, "", d.Timeout)
	if err != nil {
		printer.Warningf("analysis module %s failed: %v\n", m.Name(), err)
		return ModuleResult{Module: m.Name(), Err: err}
	}

	body, err := m.PostProcess(res.Stdout, format)
	if err != nil {
		printer.Warningf("analysis module %s post-processing failed: %v\n", m.Name(), err)
		return ModuleResult{Module: m.Name(), Err: err}
	}

	outPath := filepath.Join(outputDir, stem+"-"+outputName(m.OutputSuffix(), format))
	content := report.Render(m.Name(), body, format)
	if err := report.Write(outPath, m.Name(), content); err != nil {
		printer.Warningf("analysis module %s output write failed: %v\n", m.Name(), err)
		return ModuleResult{Module: m.Name(), Err: err}
	}

	printer.Debugf("analysis module %s wrote %s\n", m.Name(), outPath)
	return ModuleResult{Module: m.Name(), OutputPath: outPath}
}

// outputName swaps the declared .txt suffix for .md when Markdown output was
// requested.
func outputName(suffix string, format report.Format) string {
	if format == report.FormatMarkdown && strings.HasSuffix(suffix, ".txt") {
		return strings.TrimSuffix(suffix, ".txt") + ".md"
	}
	return suffix
}
