// Package toolinvoke spawns the external capture tools (tshark, editcap,
// capinfos) that capmaster treats as collaborators rather than reimplements.
// It is side-effect free beyond spawning the subprocess and buffering its
// output; callers decide whether to parse or stream the result.
package toolinvoke

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rickypin/capmaster/util"
)

// Result is the buffered outcome of one external tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Invoker resolves and runs external tools. The zero value is usable; Paths
// and EnvVars let callers override resolution for specific tool names.
type Invoker struct {
	// Paths holds explicit configured paths for tool names (highest
	// precedence), keyed the same as the tool argument to Invoke (e.g.
	// "tshark", "editcap", "capinfos").
	Paths map[string]string

	// EnvVars maps tool name to the environment variable consulted when no
	// explicit path is configured (e.g. "tshark" -> "TSHARK_PATH").
	EnvVars map[string]string

	// LookupEnv and LookPath are overridden in tests; default to the real
	// environment and os/exec.LookPath.
	LookupEnv func(string) (string, bool)
	LookPath  func(string) (string, error)
}

// New builds an Invoker with the standard tshark/editcap/capinfos env-var
// mapping.
func New(paths map[string]string) *Invoker {
	return &Invoker{
		Paths: paths,
		EnvVars: map[string]string{
			"tshark":   "TSHARK_PATH",
			"editcap":  "EDITCAP_PATH",
			"capinfos": "CAPINFOS_PATH",
		},
	}
}

// Resolve implements explicit-path > env-var > PATH precedence.
func (inv *Invoker) Resolve(tool string) (string, error) {
	if inv.Paths != nil {
		if p, ok := inv.Paths[tool]; ok && p != "" {
			return p, nil
		}
	}

	lookupEnv := inv.LookupEnv
	if lookupEnv == nil {
		lookupEnv = osLookupEnv
	}
	if envName, ok := inv.EnvVars[tool]; ok {
		if p, ok := lookupEnv(envName); ok && p != "" {
			return p, nil
		}
	}

	lookPath := inv.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if p, err := lookPath(tool); err == nil {
		return p, nil
	}

	return "", util.NewToolNotFoundError(tool)
}

// Invoke resolves tool and runs it with args, optionally piping stdin and
// enforcing timeout (zero means no timeout). When the process runs, its exit
// code is returned alongside buffered stdout/stderr; a non-nil error is
// returned for resolution failure, a failure to start the process (with an
// empty Result), a non-zero exit code, or a timeout — never for a
// successful-but-empty invocation.
func (inv *Invoker) Invoke(ctx context.Context, tool string, args []string, stdin string, timeout time.Duration) (Result, error) {
	path, err := inv.Resolve(tool)
	if err != nil {
		return Result{}, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, util.NewToolTimeoutError(tool)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, util.NewToolExecutionError(tool, -1, runErr.Error())
		}
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
	if exitCode != 0 {
		return result, util.NewToolExecutionError(tool, exitCode, result.Stderr)
	}
	return result, nil
}

// InvokeStream runs tool and hands its stdout to consume as a stream,
// avoiding buffering the whole output in memory. Used for very large
// field-extraction passes. stderr is buffered for error reporting only.
func (inv *Invoker) InvokeStream(ctx context.Context, tool string, args []string, timeout time.Duration, consume func(io.Reader) error) error {
	path, err := inv.Resolve(tool)
	if err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return util.NewToolExecutionError(tool, -1, err.Error())
	}

	if err := cmd.Start(); err != nil {
		return util.NewToolExecutionError(tool, -1, err.Error())
	}

	consumeErr := consume(stdout)
	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return util.NewToolTimeoutError(tool)
	}
	if consumeErr != nil {
		return consumeErr
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return util.NewToolExecutionError(tool, exitErr.ExitCode(), stderr.String())
		}
		return util.NewToolExecutionError(tool, -1, waitErr.Error())
	}
	return nil
}

func osLookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}
