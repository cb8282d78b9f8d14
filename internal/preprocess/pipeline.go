package preprocess

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rickypin/capmaster/internal/capture"
	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

// ReadySuffix marks final preprocessed outputs: <stem>.ready.pcap[ng].
const ReadySuffix = ".ready"

// Result summarizes one pipeline run for callers and for the report.
type Result struct {
	FinalFiles  []string
	Steps       []string
	ArchivePath string
}

// Run executes the preprocess pipeline: resolve the step list (explicit wins
// over the automatic toggle-derived order), fuse adjacent steps, run each
// handler in order, materialise final outputs in outputDir under the .ready
// naming convention, archive originals when configured, and emit the
// Markdown report. The returned file list is position-aligned with
// inputFiles.
//
// When tmpDir is empty a fresh scratch directory is created and removed on
// exit, success or error. A caller-supplied tmpDir is left in place.
func Run(ctx context.Context, runtime RuntimeConfig, inputFiles []string, outputDir string, explicitSteps []string, tmpDir string) (*Result, error) {
	if len(inputFiles) == 0 {
		return nil, util.NewInsufficientFilesError(1, 0)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, util.NewOutputDirectoryError(outputDir, err.Error())
	}

	steps := explicitSteps
	if len(steps) == 0 {
		steps = automaticSteps(runtime.Preprocess)
	}
	steps = fuseSteps(steps)

	for _, s := range steps {
		if _, ok := stepHandlers[s]; !ok {
			return nil, util.NewConfigError("unknown preprocess step: "+s,
				"valid steps: archive-original, time-align, dedup, oneway")
		}
	}

	ownsTmp := false
	if tmpDir == "" {
		tmpDir = filepath.Join(os.TempDir(), "capmaster-preprocess-"+uuid.New().String())
		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating scratch directory")
		}
		ownsTmp = true
	}
	defer func() {
		if ownsTmp {
			if err := os.RemoveAll(tmpDir); err != nil {
				printer.Warningf("failed to clean up scratch directory %s: %v\n", tmpDir, err)
			}
		}
	}()

	inv := toolinvoke.New(runtime.Tools.ToMap())
	pc := &Context{
		Runtime:    runtime,
		InputFiles: inputFiles,
		OutputDir:  outputDir,
		TmpDir:     tmpDir,
		Invoker:    inv,
		Metadata:   capture.NewService(inv, 5*time.Minute),
		Timeout:    5 * time.Minute,
	}

	current := append([]string(nil), inputFiles...)
	for _, step := range steps {
		printer.Infof("running preprocess step: %s\n", step)
		next, err := stepHandlers[step](ctx, pc, current)
		if err != nil {
			return nil, errors.Wrapf(err, "preprocess step %s", step)
		}
		if len(next) != len(current) {
			return nil, errors.Errorf("preprocess step %s changed file count from %d to %d", step, len(current), len(next))
		}
		current = next
	}

	final := make([]string, len(current))
	for i, cur := range current {
		dst := finalOutputPath(outputDir, inputFiles[i])
		if cur != dst {
			printer.Debugf("materialising final output %s -> %s\n", cur, dst)
			if err := copyCapture(cur, dst); err != nil {
				return nil, errors.Wrapf(err, "writing final output for %s", inputFiles[i])
			}
		}
		final[i] = dst
	}

	res := &Result{FinalFiles: final, Steps: steps}

	if runtime.Preprocess.ArchiveOriginal {
		archivePath, err := archiveOriginals(outputDir, inputFiles, runtime.Preprocess.ArchiveCompress)
		if err != nil {
			return nil, errors.Wrap(err, "archiving original captures")
		}
		res.ArchivePath = archivePath
	}

	maybeWriteReport(ctx, pc, res)

	return res, nil
}

// finalOutputPath maps an input capture to its <stem>.ready<ext> location in
// the output directory, preserving positional stem alignment.
func finalOutputPath(outputDir, original string) string {
	return filepath.Join(outputDir, stemOf(original)+ReadySuffix+filepath.Ext(original))
}

func copyCapture(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
