package comparative

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/analysis"
	"github.com/rickypin/capmaster/internal/analyze"
	"github.com/rickypin/capmaster/internal/report"
)

var (
	pairFlags cliargs.PairFlags
	toolFlags cliargs.ToolFlags

	outputDirFlag string
	outFlag       string
	formatFlag    string
	workersFlag   int
)

var Cmd = &cobra.Command{
	Use:          "comparative-analysis",
	Short:        "Run the analysis modules on two captures and compare outcomes.",
	Long:         "Run every applicable statistics module on both captures, writing each side's reports to its own subdirectory, plus a summary of how module outcomes differ.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fileA, fileB, err := pairFlags.Resolve()
		if err != nil {
			return cmderr.CapmasterErr{Err: err}
		}

		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			return cmderr.CapmasterErr{Err: err}
		}

		inv, err := toolFlags.Invoker()
		if err != nil {
			return cmderr.CapmasterErr{Err: err}
		}

		registry := analysis.DefaultRegistry()
		base := analyze.Args{
			Invoker:   inv,
			Registry:  registry,
			OutputDir: outputDirFlag,
			Format:    format,
			Workers:   workersFlag,
			Timeout:   5 * time.Minute,
		}
		argsA, argsB := base, base
		argsA.Capture = fileA
		argsB.Capture = fileB

		if err := analyze.RunComparative(cmd.Context(), argsA, argsB, outFlag, format); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func init() {
	pairFlags.Register(Cmd)
	toolFlags.Register(Cmd)

	Cmd.Flags().StringVarP(&outputDirFlag, "output", "o", ".", "Directory for per-side module reports.")
	Cmd.Flags().StringVar(&outFlag, "summary", "", "Summary report file; stdout when omitted.")
	Cmd.Flags().StringVar(&formatFlag, "format", "txt", "Report format: txt or md.")
	Cmd.Flags().IntVarP(&workersFlag, "workers", "w", 4, "Maximum modules run in parallel per capture.")
}
