package compare

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/correlate"
)

var flags cliargs.CorrelateFlags

var Cmd = &cobra.Command{
	Use:          "compare",
	Short:        "Report packet-level differences between two captures.",
	Long:         "Match connections across two captures and report how packet counts, byte counts, and timing differ per matched pair.",
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

		if err := correlate.WriteCompareReport(c, args.Out, args.Format); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func init() {
	flags.Register(Cmd)
}
