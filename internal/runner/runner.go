// Package runner executes short-lived commands and captures their output.
//
// It is used for interpreter version probes and package installs. Long-running
// worker processes are handled by the launcher package instead.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"panelctl/pkg/logging"
)

// execCommandContext allows tests to substitute a fake process.
var execCommandContext = exec.CommandContext

// Runner runs a command to completion and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts ...Option) (string, error)
}

// Option configures a single Run call.
type Option func(*options)

type options struct {
	dir     string
	env     map[string]string
	timeout time.Duration
}

// WithDir sets the working directory of the command.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithEnv adds variables on top of the current process environment.
func WithEnv(env map[string]string) Option {
	return func(o *options) { o.env = env }
}

// WithTimeout bounds the command's run time. The process is killed when it elapses.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// RunError describes a command that could not be started or exited non-zero.
type RunError struct {
	Command  string
	ExitCode int // -1 when the process never ran or was killed
	Output   string
	Err      error
}

func (e *RunError) Error() string {
	output := strings.TrimSpace(e.Output)
	if e.ExitCode >= 0 {
		if output == "" {
			return fmt.Sprintf("command %q failed with code %d", e.Command, e.ExitCode)
		}
		return fmt.Sprintf("command %q failed with code %d: %s", e.Command, e.ExitCode, output)
	}
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// New returns the default Runner.
func New() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args. The output of stdout and stderr is returned
// interleaved; a non-zero exit is reported as *RunError carrying that output.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, opts ...Option) (string, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))

	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = o.dir
	if len(o.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range o.env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	// Grandchildren holding the pipe open must not stall us past the deadline.
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.Debug("Runner", "Running %s", commandLine)
	err := cmd.Run()
	if err == nil {
		return output.String(), nil
	}

	runErr := &RunError{Command: commandLine, ExitCode: -1, Output: output.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		runErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		runErr.Err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	logging.Debug("Runner", "Command %s failed: %v", commandLine, runErr)
	return output.String(), runErr
}
