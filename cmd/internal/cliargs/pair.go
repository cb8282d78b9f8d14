package cliargs

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickypin/capmaster/util"
)

// PairFlags is the flag set shared by every two-capture command: either -i
// resolving to exactly two captures, or the explicit --file1/--file2 form
// with optional capture IDs. The two forms are mutually exclusive.
type PairFlags struct {
	Input    string
	File1    string
	File2    string
	File1ID  int
	File2ID  int
}

// Register binds the pair flags onto cmd.
func (p *PairFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.Input, "input", "i", "", "Two capture files (comma-separated) or a directory containing exactly two.")
	cmd.Flags().StringVar(&p.File1, "file1", "", "First capture file (alternative to -i).")
	cmd.Flags().StringVar(&p.File2, "file2", "", "Second capture file (alternative to -i).")
	cmd.Flags().IntVar(&p.File1ID, "file1-pcapid", 0, "Numeric capture ID used to label the first file in reports.")
	cmd.Flags().IntVar(&p.File2ID, "file2-pcapid", 0, "Numeric capture ID used to label the second file in reports.")
}

// Resolve validates the flag combination and returns the two capture paths.
func (p *PairFlags) Resolve() (fileA, fileB string, err error) {
	explicit := p.File1 != "" || p.File2 != ""

	if p.Input != "" && explicit {
		return "", "", util.NewConfigError("-i cannot be combined with --file1/--file2", "use one input form or the other")
	}

	if explicit {
		if p.File1 == "" || p.File2 == "" {
			return "", "", util.NewConfigError("--file1 and --file2 must both be given", "supply both files or use -i")
		}
		return p.File1, p.File2, nil
	}

	files, err := ResolveInputs(p.Input)
	if err != nil {
		return "", "", err
	}
	if len(files) < 2 {
		return "", "", util.NewInsufficientFilesError(2, len(files))
	}
	if len(files) > 2 {
		return "", "", util.NewConfigError(
			fmt.Sprintf("this command takes exactly 2 captures, found %d", len(files)),
			"name the two files explicitly with -i file1,file2")
	}
	return files[0], files[1], nil
}

// Label renders a capture path with its optional numeric ID for report
// headers.
func Label(path string, id int) string {
	if id > 0 {
		return fmt.Sprintf("%s (pcap id %d)", path, id)
	}
	return path
}
