package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// maxStderrTail bounds the tool output kept on a ToolError.
const maxStderrTail = 2048

// ErrToolFailed is matched by every ToolError.
var ErrToolFailed = errors.New("external tool failed")

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ToolError describes a tool that could not be started or exited non-zero.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}

	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

// Unwrap exposes both ErrToolFailed and the underlying cause.
func (e *ToolError) Unwrap() []error {
	return []error{ErrToolFailed, e.Err}
}

// ExecRunner runs commands with os/exec and captures their stderr.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run executes name with args and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if r.Logger != nil {
		r.Logger.DebugContext(ctx, "toolchain: command finished", "tool", name, "args", args, "stdout", tail(stdout.String()))
	}

	if runErr == nil {
		return nil
	}

	toolErr := &ToolError{Tool: name, ExitCode: -1, Stderr: tail(stderr.String()), Err: runErr}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}

	return toolErr
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		return s[len(s)-maxStderrTail:]
	}

	return s
}
