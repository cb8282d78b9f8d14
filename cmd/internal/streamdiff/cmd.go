package streamdiff

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/correlate"
)

var flags cliargs.CorrelateFlags

var Cmd = &cobra.Command{
	Use:          "streamdiff",
	Short:        "Report per-stream differences between two captures.",
	Long:         "Match TCP streams across two captures and list, per matched stream, the per-direction packet, byte, and timing differences.",
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

		if err := correlate.WriteStreamDiffReport(c, args.Out, args.Format); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func init() {
	flags.Register(Cmd)
}
