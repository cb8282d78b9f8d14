package util

import "fmt"

// Kind categorizes a CapMasterError for the stable "<kind>: ..." prefix
// printed to stderr.
type Kind string

const (
	KindConfig              Kind = "config"
	KindInputNotFound        Kind = "input-not-found"
	KindNoMatchingFiles      Kind = "no-matching-files"
	KindInsufficientFiles    Kind = "insufficient-files"
	KindToolNotFound         Kind = "tool-not-found"
	KindToolExecution        Kind = "tool-execution"
	KindToolTimeout          Kind = "tool-timeout"
	KindCaptureMetadata      Kind = "capture-metadata"
	KindOutputDirectory      Kind = "output-directory"
	KindNoProtocolsDetected  Kind = "no-protocols-detected"
	KindStrict               Kind = "strict"
)

// CapMasterError is the base user-facing error type for the toolkit. It
// carries a Kind for programmatic dispatch plus an optional suggestion line.
type CapMasterError struct {
	Kind       Kind
	Message    string
	Suggestion string
	Err        error
}

func (e *CapMasterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CapMasterError) Unwrap() error { return e.Err }

// Display prints the error followed by its optional "Suggestion: ..." line.
func (e *CapMasterError) Display(p interface {
	Errorf(string, ...interface{})
	Infof(string, ...interface{})
}) {
	p.Errorf("%s\n", e.Error())
	if e.Suggestion != "" {
		p.Infof("Suggestion: %s\n", e.Suggestion)
	}
}

func NewConfigError(message, suggestion string) *CapMasterError {
	return &CapMasterError{Kind: KindConfig, Message: message, Suggestion: suggestion}
}

func NewInputNotFoundError(path string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindInputNotFound,
		Message:    fmt.Sprintf("input not found: %s", path),
		Suggestion: "Check that the path exists and is a readable capture file or directory.",
	}
}

func NewNoMatchingFilesError(path string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindNoMatchingFiles,
		Message:    fmt.Sprintf("no .pcap/.pcapng files found in: %s", path),
		Suggestion: "Pass a file, a comma-separated list, or a directory containing capture files.",
	}
}

func NewInsufficientFilesError(required, found int) *CapMasterError {
	return &CapMasterError{
		Kind:       KindInsufficientFiles,
		Message:    fmt.Sprintf("need at least %d capture files, found %d", required, found),
		Suggestion: "Provide more input captures for this operation.",
	}
}

func NewToolNotFoundError(tool string) *CapMasterError {
	return &CapMasterError{
		Kind:    KindToolNotFound,
		Message: fmt.Sprintf("%s command not found", tool),
		Suggestion: fmt.Sprintf(
			"Install Wireshark/tshark tooling:\n"+
				"  macOS:  brew install wireshark\n"+
				"  Ubuntu: sudo apt install tshark\n"+
				"  Verify: which %s", tool),
	}
}

func NewToolExecutionError(tool string, exitCode int, stderr string) *CapMasterError {
	if len(stderr) > 200 {
		stderr = stderr[:200]
	}
	return &CapMasterError{
		Kind:       KindToolExecution,
		Message:    fmt.Sprintf("%s exited with code %d", tool, exitCode),
		Suggestion: fmt.Sprintf("Stderr: %s", stderr),
	}
}

func NewToolTimeoutError(tool string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindToolTimeout,
		Message:    fmt.Sprintf("%s timed out", tool),
		Suggestion: "Check the capture file size.",
	}
}

func NewCaptureMetadataError(path string, err error) *CapMasterError {
	return &CapMasterError{
		Kind:       KindCaptureMetadata,
		Message:    fmt.Sprintf("could not parse metadata for %s", path),
		Suggestion: "Verify the file is not corrupted.",
		Err:        err,
	}
}

func NewOutputDirectoryError(dir string, reason string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindOutputDirectory,
		Message:    fmt.Sprintf("cannot use output directory %s: %s", dir, reason),
		Suggestion: "Check directory permissions or specify a different output directory.",
	}
}

func NewNoProtocolsDetectedError(path string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindNoProtocolsDetected,
		Message:    fmt.Sprintf("no protocols detected in: %s", path),
		Suggestion: "The capture may be empty or corrupted; verify its contents.",
	}
}

// NewStrictError upgrades a warning message to a fatal error when --strict
// is set.
func NewStrictError(message string) *CapMasterError {
	return &CapMasterError{
		Kind:       KindStrict,
		Message:    fmt.Sprintf("strict mode violation: %s", message),
		Suggestion: "Fix the warning or run without --strict to ignore it.",
	}
}
