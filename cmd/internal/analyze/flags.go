package analyze

import "github.com/rickypin/capmaster/cmd/internal/cliargs"

var (
	// Required flags
	inputFlag string

	// Optional flags
	outputFlag  string
	formatFlag  string
	workersFlag int

	toolFlags cliargs.ToolFlags
)

func init() {
	Cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Capture file, comma-separated list, or directory.")
	Cmd.MarkFlagRequired("input")

	Cmd.Flags().StringVarP(&outputFlag, "output", "o", ".", "Directory for per-module report files.")
	Cmd.Flags().StringVar(&formatFlag, "format", "txt", "Report format: txt or md.")
	Cmd.Flags().IntVarP(&workersFlag, "workers", "w", 4, "Maximum modules run in parallel per capture.")

	toolFlags.Register(Cmd)
}
