// Package cliargs resolves capture-file inputs and the flag sets shared by
// the two-capture commands.
package cliargs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rickypin/capmaster/util"
)

// captureExtensions are the recognised capture container suffixes.
var captureExtensions = []string{".pcap", ".pcapng"}

func isCaptureFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range captureExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ResolveInputs expands the -i argument (a file, a comma-separated list, or
// a directory) into an ordered list of capture paths.
func ResolveInputs(input string) ([]string, error) {
	if input == "" {
		return nil, util.NewConfigError("no input specified", "pass -i with a capture file, a comma-separated list, or a directory")
	}

	var files []string
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		info, err := os.Stat(part)
		if err != nil {
			return nil, util.NewInputNotFoundError(part)
		}

		if info.IsDir() {
			found, err := capturesInDir(part)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		files = append(files, part)
	}

	if len(files) == 0 {
		return nil, util.NewNoMatchingFilesError(input)
	}
	return files, nil
}

func capturesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, util.NewInputNotFoundError(dir)
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() || !isCaptureFile(e.Name()) {
			continue
		}
		found = append(found, filepath.Join(dir, e.Name()))
	}
	sort.Strings(found)

	if len(found) == 0 {
		return nil, util.NewNoMatchingFilesError(dir)
	}
	return found, nil
}
