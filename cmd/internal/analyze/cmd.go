package analyze

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/analysis"
	"github.com/rickypin/capmaster/internal/analyze"
	"github.com/rickypin/capmaster/internal/report"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

var Cmd = &cobra.Command{
	Use:          "analyze",
	Short:        "Run protocol statistics modules against captures.",
	Long:         "Detect the protocols present in each capture and run every applicable statistics module, writing one report per module.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := run(cmd.Context()); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func run(ctx context.Context) error {
	files, err := cliargs.ResolveInputs(inputFlag)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	inv, err := toolFlags.Invoker()
	if err != nil {
		return err
	}

	registry := analysis.DefaultRegistry()

	anySucceeded := false
	for _, capture := range files {
		results, err := analyze.Run(ctx, analyze.Args{
			Capture:   capture,
			Invoker:   inv,
			Registry:  registry,
			OutputDir: outputFlag,
			Format:    format,
			Workers:   workersFlag,
			Timeout:   5 * time.Minute,
		})
		if err != nil {
			return err
		}
		if analysis.Succeeded(results) {
			anySucceeded = true
		}
		printer.Infof("analysis of %s: %d module(s) dispatched\n", capture, len(results))
	}

	if !anySucceeded {
		return util.ExitError{ExitCode: 1, Err: util.NewConfigError("no analysis module produced output", "check the capture contents and tool installation")}
	}
	return nil
}
