// Package runner executes external helper tools (ectool, dfu-util) and
// reports their outcome without ever treating a nonzero exit as a Go
// error. Callers inspect the exit status and decide what it means for
// the device they were driving.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ExitTimeout is the exit status reported when a child process was
// killed for exceeding its time allowance.
const ExitTimeout = -1

// Result is the outcome of one child process run.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// TimedOut is set when the child was killed at its deadline. The
	// exit status is ExitTimeout in that case.
	TimedOut bool
}

// OK reports whether the child exited zero within its allowance.
func (r Result) OK() bool { return r.ExitCode == 0 && !r.TimedOut }

// Runner runs child processes with captured output.
type Runner struct {
	// Verbose echoes each child's standard output after it exits.
	Verbose bool
	// Out receives verbose output. Nil means standard output.
	Out io.Writer
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

// Run executes name with args, waiting at most timeout for completion.
// A timeout of zero or less means no limit. The returned error is
// reserved for failures to run the child at all (missing binary,
// canceled context); a child that ran and exited nonzero yields a nil
// error and a Result with its exit status.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = ExitTimeout
		res.TimedOut = true
	case ctx.Err() != nil:
		return res, ctx.Err()
	case err == nil:
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("runner: start %s: %w", name, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	log.Debug().
		Str("cmd", CommandString(name, args...)).
		Int("exit", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Dur("took", time.Since(start)).
		Msg("child process finished")

	if r.Verbose && !res.TimedOut && len(res.Stdout) > 0 {
		fmt.Fprintln(r.out(), string(res.Stdout))
	}
	return res, nil
}

// CommandString renders an invocation the way it would be typed in a
// shell, for dry-run output and debug logs.
func CommandString(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
