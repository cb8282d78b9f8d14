package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/analyze"
	"github.com/rickypin/capmaster/cmd/internal/cliflag"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/cmd/internal/comparative"
	"github.com/rickypin/capmaster/cmd/internal/compare"
	"github.com/rickypin/capmaster/cmd/internal/match"
	"github.com/rickypin/capmaster/cmd/internal/preprocess"
	"github.com/rickypin/capmaster/cmd/internal/streamdiff"
	"github.com/rickypin/capmaster/cmd/internal/topology"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

var (
	silentFlag  bool
	verboseFlag int
	plainFlag   bool
)

var rootCmd = &cobra.Command{
	Use:           "capmaster",
	Short:         "Packet-capture analysis toolkit.",
	Long:          "Ingest capture files and produce protocol statistics, cross-capture connection matching, difference reports, and cleaned captures.",
	SilenceErrors: true, // We print our own errors from subcommands in Execute function
	// Don't print usage after error, we only print help if we cannot parse
	// flags. See init function below.
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		printer.SetSilent(silentFlag)
		printer.SetVerboseLevel(verboseFlag)
		if plainFlag {
			printer.SwitchToPlain()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		if _, isCmErr := err.(cmderr.CapmasterErr); !isCmErr {
			// Print usage for CLI usage errors (e.g. missing arg) but not for
			// capmaster errors (e.g. a tool that failed mid-run).
			cmd.Println(cmd.UsageString())
		}

		exitCode := 1
		var exitErr util.ExitError
		if isExitErr := errors.As(err, &exitErr); isExitErr {
			exitCode = exitErr.ExitCode
		}

		var cmErr *util.CapMasterError
		if errors.As(err, &cmErr) {
			cmErr.Display(printer.Stderr)
		} else {
			printer.Stderr.Errorf("%s\n", err)
		}
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&silentFlag, "silent", false, "Suppress info and warning output.")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase debug verbosity; repeatable.")
	rootCmd.PersistentFlags().BoolVar(&plainFlag, "plain", false, "Disable colored output.")
	rootCmd.PersistentFlags().BoolVar(&cliflag.Strict, "strict", false, "Treat warnings as fatal errors.")
	rootCmd.PersistentFlags().StringVar(&cliflag.ConfigFile, "config", "", "YAML configuration file.")

	rootCmd.AddCommand(analyze.Cmd)
	rootCmd.AddCommand(preprocess.Cmd)
	rootCmd.AddCommand(match.Cmd)
	rootCmd.AddCommand(compare.Cmd)
	rootCmd.AddCommand(streamdiff.Cmd)
	rootCmd.AddCommand(topology.Cmd)
	rootCmd.AddCommand(comparative.Cmd)
}
