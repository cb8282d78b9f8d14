package topology

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/correlate"
)

var flags cliargs.CorrelateFlags

var Cmd = &cobra.Command{
	Use:          "topology",
	Short:        "Derive the observation-point topology from two captures.",
	Long:         "List the hosts and client->server edges seen at each observation point, marking edges correlated across both captures.",
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

		if err := correlate.WriteTopologyReport(c, args.Out, args.Format); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func init() {
	flags.Register(Cmd)
}
