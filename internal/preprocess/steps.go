package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/rickypin/capmaster/internal/capture"
	"github.com/rickypin/capmaster/internal/oneway"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

const (
	StepArchiveOriginal = "archive-original"
	StepTimeAlign       = "time-align"
	StepDedup           = "dedup"
	StepOneway          = "oneway"
	StepTimeAlignDedup  = "time-align+dedup"
)

// stepHandler transforms an ordered file list into a new ordered file list
// of the same length and position alignment.
type stepHandler func(ctx context.Context, pc *Context, files []string) ([]string, error)

var stepHandlers = map[string]stepHandler{
	StepArchiveOriginal: archiveOriginalStep,
	StepTimeAlign:       timeAlignStep,
	StepDedup:           dedupStep,
	StepOneway:          onewayStep,
	StepTimeAlignDedup:  timeAlignDedupStep,
}

// automaticSteps derives the step list used when the caller supplies no
// explicit steps: the archive, time-align, dedup, oneway order filtered by
// the enable toggles.
func automaticSteps(cfg Config) []string {
	var steps []string
	if cfg.ArchiveOriginal {
		steps = append(steps, StepArchiveOriginal)
	}
	if cfg.TimeAlignEnabled {
		steps = append(steps, StepTimeAlign)
	}
	if cfg.DedupEnabled {
		steps = append(steps, StepDedup)
	}
	if cfg.OnewayEnabled {
		steps = append(steps, StepOneway)
	}
	return steps
}

// fuseSteps folds a consecutive time-align, dedup pair into the combined
// time-align+dedup step. External semantics are unchanged; only the number
// of passes editcap makes over each file is reduced.
func fuseSteps(steps []string) []string {
	var out []string
	for i := 0; i < len(steps); i++ {
		if steps[i] == StepTimeAlign && i+1 < len(steps) && steps[i+1] == StepDedup {
			out = append(out, StepTimeAlignDedup)
			i++
			continue
		}
		out = append(out, steps[i])
	}
	return out
}

// parallelMap runs fn over items with at most workers goroutines in flight,
// returning results in the same order as items. On any error no results are
// returned. With one worker (or at most one item) items run in order and the
// first error stops the rest; otherwise every item still runs and the errors
// of all failed items are returned together.
func parallelMap[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	if len(items) <= 1 || workers == 1 {
		results := make([]R, len(items))
		for i, item := range items {
			r, err := fn(ctx, item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	results := make([]R, len(items))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(workers)
	for i, item := range items {
		i, item := i, item
		p.Go(func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// archiveOriginalStep is a no-op placeholder: archiving happens during
// finalisation so every input's disposition is known before the tarball is
// written. Keeping the step name in the handler map preserves it for
// explicit step lists and reports without changing semantics.
func archiveOriginalStep(ctx context.Context, pc *Context, files []string) ([]string, error) {
	return files, nil
}

// rangedFile pairs a capture path with its measured time range.
type rangedFile struct {
	path string
	tr   capture.TimeRange
}

func rangeFiles(ctx context.Context, pc *Context, files []string) ([]rangedFile, error) {
	cfg := pc.Runtime.Preprocess
	return parallelMap(ctx, cfg.Workers, files, func(ctx context.Context, src string) (rangedFile, error) {
		tr, err := pc.Metadata.TimeRange(ctx, src)
		if err != nil {
			return rangedFile{}, err
		}
		return rangedFile{path: src, tr: tr}, nil
	})
}

func timeAlignStep(ctx context.Context, pc *Context, files []string) ([]string, error) {
	cfg := pc.Runtime.Preprocess

	if len(files) < 2 {
		if err := util.WarnOrFail(cfg.Strict, printer.Warningf, "time-align requires at least 2 files; passing through (got %d)", len(files)); err != nil {
			return nil, err
		}
		return files, nil
	}

	ranges, err := rangeFiles(ctx, pc, files)
	if err != nil {
		return nil, err
	}

	tStart, tEnd := overlapWindow(ranges)
	printer.Infof("computed global overlap window: start=%f end=%f\n", tStart, tEnd)

	if !(tStart < tEnd) {
		if !cfg.TimeAlignAllowEmpty {
			if err := util.WarnOrFail(cfg.Strict, printer.Warningf, "no overlapping time window between input captures; passing files through unchanged"); err != nil {
				return nil, err
			}
			return files, nil
		}
		return emptyOutputsFor(pc, files)
	}

	return parallelMap(ctx, cfg.Workers, ranges, func(ctx context.Context, r rangedFile) (string, error) {
		out := filepath.Join(pc.TmpDir, stemOf(r.path)+".timealign"+filepath.Ext(r.path))
		printer.Infof("cropping %s to window [%f, %f] -> %s\n", r.path, tStart, tEnd, out)
		return out, runEditcapTimeCrop(ctx, pc, r.path, out, tStart, tEnd)
	})
}

func dedupStep(ctx context.Context, pc *Context, files []string) ([]string, error) {
	cfg := pc.Runtime.Preprocess
	return parallelMap(ctx, cfg.Workers, files, func(ctx context.Context, src string) (string, error) {
		out := filepath.Join(pc.TmpDir, stemOf(src)+".dedup"+filepath.Ext(src))
		printer.Debugf("running dedup on %s -> %s\n", src, out)
		if err := runEditcapDedup(ctx, pc, src, out, cfg.DedupWindowPackets, cfg.DedupIgnoreBytes); err != nil {
			return "", err
		}
		return out, nil
	})
}

func onewayStep(ctx context.Context, pc *Context, files []string) ([]string, error) {
	cfg := pc.Runtime.Preprocess
	return parallelMap(ctx, cfg.Workers, files, func(ctx context.Context, src string) (string, error) {
		out := filepath.Join(pc.TmpDir, stemOf(src)+".oneway"+filepath.Ext(src))

		printer.Debugf("detecting one-way TCP streams for %s\n", src)
		streamIDs, err := oneway.DetectStreams(ctx, pc.Invoker, pc.Timeout, src, cfg.OnewayAckThreshold)
		if err != nil {
			return "", err
		}

		if len(streamIDs) == 0 {
			printer.Debugf("no one-way streams detected for %s; copying unchanged\n", src)
		} else {
			printer.Infof("filtering %d one-way stream(s) from %s\n", len(streamIDs), src)
		}
		if err := oneway.FilterExcluding(ctx, pc.Invoker, pc.Timeout, src, out, streamIDs); err != nil {
			return "", err
		}
		return out, nil
	})
}

// timeAlignDedupStep is the fused implementation of time-align immediately
// followed by dedup: a single editcap invocation per file does both the
// time crop and the duplicate-packet removal.
func timeAlignDedupStep(ctx context.Context, pc *Context, files []string) ([]string, error) {
	cfg := pc.Runtime.Preprocess

	if len(files) < 2 {
		if err := util.WarnOrFail(cfg.Strict, printer.Warningf, "time-align+dedup requires at least 2 files; falling back to dedup only (got %d)", len(files)); err != nil {
			return nil, err
		}
		return dedupStep(ctx, pc, files)
	}

	ranges, err := rangeFiles(ctx, pc, files)
	if err != nil {
		return nil, err
	}

	tStart, tEnd := overlapWindow(ranges)
	printer.Infof("computed global overlap window (time-align+dedup): start=%f end=%f\n", tStart, tEnd)

	if !(tStart < tEnd) {
		if !cfg.TimeAlignAllowEmpty {
			if err := util.WarnOrFail(cfg.Strict, printer.Warningf, "no overlapping time window between input captures; falling back to dedup-only step"); err != nil {
				return nil, err
			}
			return dedupStep(ctx, pc, files)
		}
		return emptyOutputsFor(pc, files)
	}

	return parallelMap(ctx, cfg.Workers, ranges, func(ctx context.Context, r rangedFile) (string, error) {
		out := filepath.Join(pc.TmpDir, stemOf(r.path)+".timealign_dedup"+filepath.Ext(r.path))
		printer.Infof("cropping+dedup %s to window [%f, %f] -> %s\n", r.path, tStart, tEnd, out)
		return out, runEditcapTimeCropAndDedup(ctx, pc, r.path, out, tStart, tEnd, cfg.DedupWindowPackets, cfg.DedupIgnoreBytes)
	})
}

func overlapWindow(ranges []rangedFile) (float64, float64) {
	tStart, tEnd := ranges[0].tr.FirstTS, ranges[0].tr.LastTS
	for _, r := range ranges[1:] {
		if r.tr.FirstTS > tStart {
			tStart = r.tr.FirstTS
		}
		if r.tr.LastTS < tEnd {
			tEnd = r.tr.LastTS
		}
	}
	return tStart, tEnd
}

func emptyOutputsFor(pc *Context, files []string) ([]string, error) {
	printer.Warningf("no overlapping time window; generating empty capture outputs\n")
	out := make([]string, len(files))
	for i, src := range files {
		dst := filepath.Join(pc.TmpDir, stemOf(src)+".timealign-empty"+filepath.Ext(src))
		if err := capture.WriteEmpty(src, dst); err != nil {
			return nil, errors.Wrapf(err, "synthesizing empty capture for %s", src)
		}
		out[i] = dst
	}
	return out, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runEditcapDedup(ctx context.Context, pc *Context, input, output string, windowPackets, ignoreBytes int) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	args := []string{}
	if windowPackets <= 0 {
		args = append(args, "-d")
	} else {
		args = append(args, "-D", strconv.Itoa(windowPackets))
	}
	if ignoreBytes > 0 {
		args = append(args, "-I", strconv.Itoa(ignoreBytes))
	}
	args = append(args, input, output)

	_, err := pc.Invoker.Invoke(ctx, "editcap", args, "", pc.Timeout)
	return err
}

func runEditcapTimeCropAndDedup(ctx context.Context, pc *Context, input, output string, start, end float64, windowPackets, ignoreBytes int) error {
	if end <= start {
		return util.NewConfigError("invalid time window for editcap crop", "start must be earlier than end")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	args := []string{"-A", formatTS(start), "-B", formatTS(end)}
	if windowPackets <= 0 {
		args = append(args, "-d")
	} else {
		args = append(args, "-D", strconv.Itoa(windowPackets))
	}
	if ignoreBytes > 0 {
		args = append(args, "-I", strconv.Itoa(ignoreBytes))
	}
	args = append(args, input, output)

	_, err := pc.Invoker.Invoke(ctx, "editcap", args, "", pc.Timeout)
	return err
}

func runEditcapTimeCrop(ctx context.Context, pc *Context, input, output string, start, end float64) error {
	if end <= start {
		return util.NewConfigError("invalid time window for editcap crop", "start must be earlier than end")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	args := []string{"-A", formatTS(start), "-B", formatTS(end), input, output}
	_, err := pc.Invoker.Invoke(ctx, "editcap", args, "", pc.Timeout)
	return err
}

func formatTS(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}
