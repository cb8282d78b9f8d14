package preprocess

import (
	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/cmd/internal/cliargs"
	"github.com/rickypin/capmaster/cmd/internal/cliflag"
	"github.com/rickypin/capmaster/internal/preprocess"
	"github.com/rickypin/capmaster/util"
)

var (
	// Required flags
	inputFlag string

	// Optional flags
	outputFlag string
	stepFlag   []string
	tmpDirFlag string

	enableDedup      bool
	disableDedup     bool
	enableOneway     bool
	disableOneway    bool
	enableTimeAlign  bool
	disableTimeAlign bool
	enableArchive    bool
	disableArchive   bool

	dedupWindowFlag      int
	dedupIgnoreBytesFlag int
	ackThresholdFlag     int
	allowEmptyFlag       bool
	archiveCompressFlag  bool
	reportPathFlag       string
	noReportFlag         bool
	workersFlag          int

	toolFlags cliargs.ToolFlags
)

func init() {
	Cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Capture file, comma-separated list, or directory.")
	Cmd.MarkFlagRequired("input")

	Cmd.Flags().StringVarP(&outputFlag, "output", "o", ".", "Directory for preprocessed outputs.")
	Cmd.Flags().StringArrayVar(&stepFlag, "step", nil, "Explicit step to run, repeatable; overrides the automatic step order.")
	Cmd.Flags().StringVar(&tmpDirFlag, "tmp-dir", "", "Scratch directory for intermediate files; kept after the run when supplied.")

	Cmd.Flags().BoolVar(&enableDedup, "enable-dedup", false, "Force the dedup step on.")
	Cmd.Flags().BoolVar(&disableDedup, "disable-dedup", false, "Force the dedup step off.")
	Cmd.Flags().BoolVar(&enableOneway, "enable-oneway", false, "Force the one-way stream removal step on.")
	Cmd.Flags().BoolVar(&disableOneway, "disable-oneway", false, "Force the one-way stream removal step off.")
	Cmd.Flags().BoolVar(&enableTimeAlign, "enable-time-align", false, "Force the time-align step on.")
	Cmd.Flags().BoolVar(&disableTimeAlign, "disable-time-align", false, "Force the time-align step off.")
	Cmd.Flags().BoolVar(&enableArchive, "enable-archive", false, "Archive original inputs after preprocessing.")
	Cmd.Flags().BoolVar(&disableArchive, "disable-archive", false, "Do not archive original inputs.")

	Cmd.Flags().IntVar(&dedupWindowFlag, "dedup-window", 0, "Dedup window in packets; 0 uses the tool default.")
	Cmd.Flags().IntVar(&dedupIgnoreBytesFlag, "dedup-ignore-bytes", 0, "Trailing bytes to ignore when fingerprinting duplicates.")
	Cmd.Flags().IntVar(&ackThresholdFlag, "ack-threshold", 0, "ACK progression threshold for one-way stream detection.")
	Cmd.Flags().BoolVar(&allowEmptyFlag, "allow-empty", false, "Produce empty outputs when captures share no time window.")
	Cmd.Flags().BoolVar(&archiveCompressFlag, "archive-compress", false, "Gzip-compress the originals archive.")
	Cmd.Flags().StringVar(&reportPathFlag, "report-path", "", "Markdown report location, relative to the output directory.")
	Cmd.Flags().BoolVar(&noReportFlag, "no-report", false, "Skip Markdown report generation.")
	Cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Per-step worker pool size.")

	toolFlags.Register(Cmd)
}

// togglesUsed reports whether any enable/disable toggle was passed.
func togglesUsed(cmd *cobra.Command) bool {
	for _, name := range []string{
		"enable-dedup", "disable-dedup",
		"enable-oneway", "disable-oneway",
		"enable-time-align", "disable-time-align",
		"enable-archive", "disable-archive",
	} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// buildOverrides turns passed flags into config overrides, leaving unset
// flags as nil so YAML and defaults show through.
func buildOverrides(cmd *cobra.Command) (preprocess.Overrides, error) {
	o := preprocess.Overrides{Tools: toolFlags.Overrides()}

	toggle := func(enableName, disableName string, dst **bool) error {
		enabled := cmd.Flags().Changed(enableName)
		disabled := cmd.Flags().Changed(disableName)
		if enabled && disabled {
			return util.NewConfigError("--"+enableName+" conflicts with --"+disableName,
				"pass at most one toggle per step")
		}
		if enabled {
			v := true
			*dst = &v
		} else if disabled {
			v := false
			*dst = &v
		}
		return nil
	}

	if err := toggle("enable-dedup", "disable-dedup", &o.DedupEnabled); err != nil {
		return o, err
	}
	if err := toggle("enable-oneway", "disable-oneway", &o.OnewayEnabled); err != nil {
		return o, err
	}
	if err := toggle("enable-time-align", "disable-time-align", &o.TimeAlignEnabled); err != nil {
		return o, err
	}
	if err := toggle("enable-archive", "disable-archive", &o.ArchiveOriginal); err != nil {
		return o, err
	}

	if cmd.Flags().Changed("dedup-window") {
		o.DedupWindowPackets = &dedupWindowFlag
	}
	if cmd.Flags().Changed("dedup-ignore-bytes") {
		o.DedupIgnoreBytes = &dedupIgnoreBytesFlag
	}
	if cmd.Flags().Changed("ack-threshold") {
		o.OnewayAckThreshold = &ackThresholdFlag
	}
	if cmd.Flags().Changed("allow-empty") {
		o.TimeAlignAllowEmpty = &allowEmptyFlag
	}
	if cmd.Flags().Changed("archive-compress") {
		o.ArchiveCompress = &archiveCompressFlag
	}
	if cmd.Flags().Changed("report-path") {
		o.ReportPath = &reportPathFlag
	}
	if cmd.Flags().Changed("no-report") {
		v := !noReportFlag
		o.ReportEnabled = &v
	}
	if cmd.Flags().Changed("workers") {
		o.Workers = &workersFlag
	}

	o.Strict = &cliflag.Strict

	return o, nil
}
