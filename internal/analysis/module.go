// Package analysis implements the per-protocol statistics modules, their
// registry, and the dispatcher that runs them against a capture.
package analysis

import "github.com/rickypin/capmaster/internal/report"

// Module is the capability contract every analysis module implements. A
// module names itself, declares which detected protocols gate its execution,
// builds the field-extraction arguments for its statistics pass, and
// post-processes the raw tool output into the report body.
//
// BuildArgs and PostProcess are pure in their inputs; modules hold no
// mutable state and may run concurrently.
type Module interface {
	Name() string

	// OutputSuffix is appended to the capture stem to form the output file
	// name, e.g. "protocol-hierarchy.txt".
	OutputSuffix() string

	// RequiredProtocols gates execution: empty means always run, otherwise
	// the module runs iff any listed protocol was detected in the capture.
	RequiredProtocols() []string

	// BuildArgs returns the tshark arguments after "-r <capture>".
	BuildArgs(capturePath string) []string

	// PostProcess turns raw tool stdout into the report body.
	PostProcess(raw string, format report.Format) (string, error)
}

// statModule covers the modules whose whole behavior is one `-z` statistics
// query with the raw output passed through.
type statModule struct {
	name      string
	suffix    string
	protocols []string
	args      []string
}

func (m statModule) Name() string                  { return m.name }
func (m statModule) OutputSuffix() string          { return m.suffix }
func (m statModule) RequiredProtocols() []string   { return m.protocols }
func (m statModule) BuildArgs(string) []string     { return append([]string(nil), m.args...) }
func (m statModule) PostProcess(raw string, _ report.Format) (string, error) {
	return raw, nil
}
