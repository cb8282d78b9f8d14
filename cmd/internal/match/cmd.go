package match

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/correlate"
)

var flags cliargs.CorrelateFlags

var Cmd = &cobra.Command{
	Use:          "match",
	Short:        "Correlate TCP connections across two captures.",
	Long:         "Score and pair TCP connections observed in two captures of the same traffic, typically taken at different hops.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		args, err := flags.BuildArgs()
		if err != nil {
			return cmderr.CapmasterErr{Err: err}
		}

		c, err := correlate.Run(cmd.Context(), args)
		if err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		flags.Relabel(c)

		if err := correlate.WriteMatchReport(c, args.Out, args.Format); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func init() {
	flags.Register(Cmd)
}
