package preprocess

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cliflag"
	"github.com/rickypin/capmaster/cmd/internal/cmderr"
	"github.com/rickypin/capmaster/internal/preprocess"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

var Cmd = &cobra.Command{
	Use:          "preprocess",
	Short:        "Clean and align capture files.",
	Long:         "Run the preprocess pipeline over capture files: archive originals, crop to the common time window, remove duplicate packets, and drop one-way TCP streams.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := run(cmd.Context(), cmd); err != nil {
			return cmderr.CapmasterErr{Err: err}
		}
		return nil
	},
}

func run(ctx context.Context, cmd *cobra.Command) error {
	files, err := cliargs.ResolveInputs(inputFlag)
	if err != nil {
		return err
	}

	overrides, err := buildOverrides(cmd)
	if err != nil {
		return err
	}

	yamlData, err := preprocess.LoadYAMLConfig(cliflag.ConfigFile)
	if err != nil {
		return err
	}
	rc := preprocess.BuildRuntimeConfig(yamlData, overrides)

	explicitSteps := stepFlag
	if len(explicitSteps) > 0 && togglesUsed(cmd) {
		return util.NewConfigError("--step cannot be combined with --enable-*/--disable-* toggles",
			"either enumerate explicit steps or use toggles, not both")
	}

	res, err := preprocess.Run(ctx, rc, files, outputFlag, explicitSteps, tmpDirFlag)
	if err != nil {
		return err
	}

	printer.Infof("preprocess complete: %d file(s) written\n", len(res.FinalFiles))
	for _, f := range res.FinalFiles {
		printer.Infof("  %s\n", f)
	}
	return nil
}
