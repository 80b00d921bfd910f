package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/01cheese/OnlineCompiler/task"
)

// ErrUnknownLanguage is reported when a request names a language the
// executor has no runtime for.
var ErrUnknownLanguage = errors.New("no runtime configured for language")

// Request is one unit of work for an Executor.
type Request struct {
	TaskID   string
	Language string
	Source   string
}

// Termination tells how an execution ended.
type Termination string

const (
	TerminatedByExit        Termination = "exit"
	TerminatedByTimeout     Termination = "timeout"
	TerminatedByLaunchError Termination = "launch_error"
)

// Outcome is the raw result of one execution. It is not a final verdict;
// callers classify it.
type Outcome struct {
	Output       string
	WallTime     time.Duration
	TerminatedBy Termination
	ExitCode     int
	// Err carries the launch failure for logging.
	Err error
}

// Executor runs one request to completion. Implementations never return an
// error: every failure is folded into the Outcome.
type Executor interface {
	Execute(ctx context.Context, req Request) Outcome
}

// LaunchErrorPrefix precedes the description of a failure to start the
// isolated runtime.
const LaunchErrorPrefix = "Docker error: "

func launchFailure(err error) Outcome {
	return Outcome{
		Output:       LaunchErrorPrefix + err.Error(),
		TerminatedBy: TerminatedByLaunchError,
		ExitCode:     -1,
		Err:          err,
	}
}

func timeoutOutcome(deadline time.Duration) Outcome {
	return Outcome{
		Output:       task.TimeoutExceeded,
		WallTime:     deadline,
		TerminatedBy: TerminatedByTimeout,
		ExitCode:     -1,
	}
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error)
}

// DefaultWaitDelay bounds how long RunCommand waits for output pipes to
// close after the command exits or its context is cancelled.
const DefaultWaitDelay = 5 * time.Second

// RealCommandRunner implements CommandRunner using actual exec commands.
// OutputLimit bounds the bytes retained from each stream; zero keeps
// everything. WaitDelay falls back to DefaultWaitDelay when zero.
type RealCommandRunner struct {
	OutputLimit int
	WaitDelay   time.Duration
}

// RunCommand executes the given command with arguments
func (r RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Arguments are built by the executor
	// A descendant that inherits stdout would otherwise keep Wait blocked
	// after the CLI itself is killed.
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	stdoutBuf := newCaptureBuffer(r.OutputLimit)
	stderrBuf := newCaptureBuffer(r.OutputLimit)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	err = cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}

	exitCode = 0
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return "", "", 0, err
		}
		exitCode = exitError.ExitCode()
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	Chmod(name string, mode os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// captureBuffer keeps at most limit bytes and silently drops the rest so a
// chatty program cannot exhaust host memory.
type captureBuffer struct {
	buf   bytes.Buffer
	limit int
}

func newCaptureBuffer(limit int) *captureBuffer {
	return &captureBuffer{limit: limit}
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	if c.limit <= 0 {
		return c.buf.Write(p)
	}
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *captureBuffer) String() string {
	return c.buf.String()
}
