package cliargs

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliflag"
	"github.com/rickypin/capmaster/internal/preprocess"
	"github.com/rickypin/capmaster/internal/toolinvoke"
)

// ToolFlags carries the external-tool path overrides every command that
// shells out accepts.
type ToolFlags struct {
	TsharkPath   string
	EditcapPath  string
	CapinfosPath string
}

// Register binds the tool-path flags onto cmd.
func (t *ToolFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.TsharkPath, "tshark-path", "", "Explicit path to the tshark executable.")
	cmd.Flags().StringVar(&t.EditcapPath, "editcap-path", "", "Explicit path to the editcap executable.")
	cmd.Flags().StringVar(&t.CapinfosPath, "capinfos-path", "", "Explicit path to the capinfos executable.")
}

// Overrides renders the flags as preprocess tool overrides.
func (t *ToolFlags) Overrides() preprocess.ToolsOverrides {
	return preprocess.ToolsOverrides{
		TsharkPath:   t.TsharkPath,
		EditcapPath:  t.EditcapPath,
		CapinfosPath: t.CapinfosPath,
	}
}

// Invoker resolves the YAML config plus these flag overrides into a tool
// invoker.
func (t *ToolFlags) Invoker() (*toolinvoke.Invoker, error) {
	yamlData, err := preprocess.LoadYAMLConfig(cliflag.ConfigFile)
	if err != nil {
		return nil, err
	}
	rc := preprocess.BuildRuntimeConfig(yamlData, preprocess.Overrides{Tools: t.Overrides()})
	return toolinvoke.New(rc.Tools.ToMap()), nil
}
