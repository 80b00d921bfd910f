// Package coordinator runs one task through analysis and execution.
package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/analyzer"
	"github.com/01cheese/OnlineCompiler/sandbox"
	"github.com/01cheese/OnlineCompiler/task"
)

// Coordinator binds the analyzer and executor of one language.
type Coordinator struct {
	logger   *zap.Logger
	language string
	analyzer analyzer.Analyzer
	executor sandbox.Executor
	mode     Mode
}

// New creates a Coordinator for a canonical language name.
func New(logger *zap.Logger, language string, a analyzer.Analyzer, e sandbox.Executor, mode Mode) *Coordinator {
	return &Coordinator{
		logger:   logger.With(zap.String("language", language)),
		language: language,
		analyzer: a,
		executor: e,
		mode:     mode,
	}
}

// Language returns the canonical language this coordinator serves.
func (c *Coordinator) Language() string {
	return c.language
}

// Run screens the source and, if it passes, executes it. Source that fails
// screening never reaches the executor.
func (c *Coordinator) Run(ctx context.Context, t task.Task) (result task.Result) {
	logger := c.logger.With(zap.String("task_id", t.ID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered from panic while running task", zap.Any("panic", r))
			result = task.Failed(t.ID, fmt.Sprintf("internal error: %v", r), task.KindInternal)
		}
	}()

	verdict := c.analyzer.Analyze(ctx, t.SourceCode)
	if !verdict.Passed {
		logger.Info("source rejected", zap.String("reason", verdict.Reason), zap.String("kind", string(verdict.Kind)))
		return task.Failed(t.ID, verdict.Reason, verdict.Kind)
	}

	outcome := c.executor.Execute(ctx, sandbox.Request{
		TaskID:   t.ID,
		Language: c.language,
		Source:   t.SourceCode,
	})

	status := classify(c.mode, outcome)
	result = task.Result{
		TaskID:  t.ID,
		Output:  outcome.Output,
		Status:  status,
		Elapsed: outcome.WallTime,
	}
	if status == task.StatusFailed {
		result.Kind = failureKind(outcome)
	}

	logger.Debug("task completed",
		zap.String("status", string(result.Status)),
		zap.String("terminated_by", string(outcome.TerminatedBy)),
		zap.Duration("elapsed", result.Elapsed),
	)

	return result
}
