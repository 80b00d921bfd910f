package coordinator

import (
	"fmt"
	"strings"

	"github.com/01cheese/OnlineCompiler/sandbox"
	"github.com/01cheese/OnlineCompiler/task"
)

// Mode selects how a completed execution is judged.
type Mode string

const (
	// ModeMarkers fails a task that did not run to exit or whose output
	// mentions an error. The exit code is ignored, and a program that
	// legitimately prints "Error" is reported as failed.
	ModeMarkers Mode = "markers"
	// ModeExitStatus fails a task when the program did not exit normally
	// with status zero. Output text is ignored.
	ModeExitStatus Mode = "exit_status"
)

var failureMarkers = []string{"Error", "Exception"}

// ParseMode validates a configured classification mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExitStatus, ModeMarkers:
		return Mode(s), nil
	case "":
		return ModeMarkers, nil
	default:
		return "", fmt.Errorf("unknown classification mode: %s", s)
	}
}

// classify maps a raw outcome onto a terminal status. It never changes the
// output text.
func classify(mode Mode, outcome sandbox.Outcome) task.Status {
	if outcome.TerminatedBy != sandbox.TerminatedByExit {
		return task.StatusFailed
	}

	if mode == ModeExitStatus {
		if outcome.ExitCode != 0 {
			return task.StatusFailed
		}
		return task.StatusFinished
	}

	for _, marker := range failureMarkers {
		if strings.Contains(outcome.Output, marker) {
			return task.StatusFailed
		}
	}
	return task.StatusFinished
}

func failureKind(outcome sandbox.Outcome) task.Kind {
	switch outcome.TerminatedBy {
	case sandbox.TerminatedByTimeout:
		return task.KindSandboxTimeout
	case sandbox.TerminatedByLaunchError:
		return task.KindSandboxLaunchError
	default:
		return ""
	}
}
