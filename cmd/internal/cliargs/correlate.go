package cliargs

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/internal/correlate"
	"github.com/rickypin/capmaster/internal/match"
	"github.com/rickypin/capmaster/internal/report"
)

// CorrelateFlags is the full flag set of the two-capture commands: the
// input pair, matcher tuning, and output selection.
type CorrelateFlags struct {
	Pair  PairFlags
	Tools ToolFlags

	Output    string
	Format    string
	Profile   string
	Bucket    string
	Threshold float64
	Mode      string
	Workers   int
}

// Register binds all correlate flags onto cmd.
func (f *CorrelateFlags) Register(cmd *cobra.Command) {
	f.Pair.Register(cmd)
	f.Tools.Register(cmd)

	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Output file; stdout when omitted.")
	cmd.Flags().StringVar(&f.Format, "format", "txt", "Report format: txt or md.")
	cmd.Flags().StringVar(&f.Profile, "profile", string(match.ProfileAuto), "Scoring profile: auto or behavioral.")
	cmd.Flags().StringVar(&f.Bucket, "bucket", string(match.BucketServerPort), "Candidate bucketing: server-port, port-pair, or hash.")
	cmd.Flags().Float64Var(&f.Threshold, "threshold", match.DefaultThreshold, "Minimum score for a reported match.")
	cmd.Flags().StringVar(&f.Mode, "mode", string(match.AssignOneToOne), "Assignment mode: one-to-one or one-to-many.")
	cmd.Flags().IntVarP(&f.Workers, "workers", "w", 4, "Buckets scored in parallel.")
}

// BuildArgs validates the flags and assembles the correlate run arguments.
func (f *CorrelateFlags) BuildArgs() (correlate.Args, error) {
	fileA, fileB, err := f.Pair.Resolve()
	if err != nil {
		return correlate.Args{}, err
	}

	format, err := report.ParseFormat(f.Format)
	if err != nil {
		return correlate.Args{}, err
	}

	profile, err := match.ParseProfile(f.Profile)
	if err != nil {
		return correlate.Args{}, err
	}
	bucket, err := match.ParseBucketKey(f.Bucket)
	if err != nil {
		return correlate.Args{}, err
	}
	mode, err := match.ParseAssignMode(f.Mode)
	if err != nil {
		return correlate.Args{}, err
	}

	inv, err := f.Tools.Invoker()
	if err != nil {
		return correlate.Args{}, err
	}

	return correlate.Args{
		CaptureA: fileA,
		CaptureB: fileB,
		Invoker:  inv,
		Timeout:  5 * time.Minute,
		Match: match.Config{
			Profile:   profile,
			Bucket:    bucket,
			Threshold: f.Threshold,
			Mode:      mode,
			Workers:   f.Workers,
		},
		Out:    f.Output,
		Format: format,
	}, nil
}

// Relabel rewrites the correlation's display names with the optional
// --fileN-pcapid labels.
func (f *CorrelateFlags) Relabel(c *correlate.Correlation) {
	c.CaptureA = Label(c.CaptureA, f.Pair.File1ID)
	c.CaptureB = Label(c.CaptureB, f.Pair.File2ID)
}
