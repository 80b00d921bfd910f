// Package task defines the values that flow through the execution pipeline.
//
// A Task is a single code submission. A Result is the terminal outcome of
// running it. Both are immutable once created and are keyed by the task id,
// which also names the task's workspace and its notification topic.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the terminal classification of a task.
type Status string

const (
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Kind tells why a failed result failed. It is empty for finished results
// and for programs that ran to completion but were classified as failed.
type Kind string

const (
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindSafetyViolation     Kind = "safety_violation"
	KindMalformedSource     Kind = "malformed_source"
	KindSandboxTimeout      Kind = "sandbox_timeout"
	KindSandboxLaunchError  Kind = "sandbox_launch_error"
	KindInternal            Kind = "internal"
)

// Output texts shared by several components.
const (
	LanguageNotFound = "language not found"
	TimeoutExceeded  = "Timeout exceeded"
)

// Task is one user code submission.
type Task struct {
	ID          string    `json:"id"`
	Language    string    `json:"language"`
	SourceCode  string    `json:"source_code"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Topic returns the notification topic for a task id.
func Topic(taskID string) string {
	return "task:" + taskID
}

// Result is the terminal outcome of a task.
type Result struct {
	TaskID  string
	Output  string
	Status  Status
	Elapsed time.Duration
	Kind    Kind
}

// Failed builds a failed result that never reached the executor.
func Failed(taskID, output string, kind Kind) Result {
	return Result{
		TaskID: taskID,
		Output: output,
		Status: StatusFailed,
		Kind:   kind,
	}
}

// FormatElapsed renders a duration the way results carry it, e.g. "10.000s".
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

type resultJSON struct {
	TaskID  string `json:"task_id,omitempty"`
	Output  string `json:"output"`
	Status  Status `json:"status"`
	Elapsed string `json:"elapsed"`
	Kind    Kind   `json:"kind,omitempty"`
}

// MarshalJSON encodes the elapsed time as a formatted string.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		TaskID:  r.TaskID,
		Output:  r.Output,
		Status:  r.Status,
		Elapsed: FormatElapsed(r.Elapsed),
		Kind:    r.Kind,
	})
}

// UnmarshalJSON decodes a result produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var elapsed time.Duration
	if raw.Elapsed != "" {
		d, err := time.ParseDuration(raw.Elapsed)
		if err != nil {
			return fmt.Errorf("invalid elapsed %q: %w", raw.Elapsed, err)
		}
		elapsed = d
	}
	*r = Result{
		TaskID:  raw.TaskID,
		Output:  raw.Output,
		Status:  raw.Status,
		Elapsed: elapsed,
		Kind:    raw.Kind,
	}
	return nil
}
