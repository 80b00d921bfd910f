// Package dispatcher routes tasks to the coordinator of their language and
// records the terminal result.
package dispatcher

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/task"
)

const persistTimeout = 5 * time.Second

// Runner runs a task to a terminal result. *coordinator.Coordinator
// implements it.
type Runner interface {
	Run(ctx context.Context, t task.Task) task.Result
}

// ResultStore records terminal results.
type ResultStore interface {
	Save(ctx context.Context, result task.Result) error
}

// Publisher announces terminal results to subscribers.
type Publisher interface {
	Publish(ctx context.Context, result task.Result) error
}

// Dispatcher resolves a task's language and hands it to that language's
// runner. It is safe for concurrent use once registration is done.
type Dispatcher struct {
	logger    *zap.Logger
	runners   map[string]Runner
	store     ResultStore
	publisher Publisher
}

// New creates a Dispatcher. store and publisher may be nil when results are
// consumed only through Dispatch's return value.
func New(logger *zap.Logger, store ResultStore, publisher Publisher) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		runners:   make(map[string]Runner),
		store:     store,
		publisher: publisher,
	}
}

// Register binds a runner to a canonical language name.
func (d *Dispatcher) Register(language string, r Runner) {
	d.runners[language] = r
}

// Languages lists the registered canonical language names.
func (d *Dispatcher) Languages() []string {
	langs := make([]string, 0, len(d.runners))
	for lang := range d.runners {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// Dispatch runs the task, stores and publishes its result, and returns it.
// Storage and publication failures are logged and never change the result.
func (d *Dispatcher) Dispatch(ctx context.Context, t task.Task) task.Result {
	result := d.run(ctx, t)
	d.persist(ctx, result)
	return result
}

func (d *Dispatcher) run(ctx context.Context, t task.Task) task.Result {
	language, ok := task.CanonicalLanguage(t.Language)
	runner, registered := d.runners[language]
	if !ok || !registered {
		d.logger.Info("language not found",
			zap.String("task_id", t.ID),
			zap.String("language", t.Language),
		)
		return task.Failed(t.ID, task.LanguageNotFound, task.KindUnsupportedLanguage)
	}

	return runner.Run(ctx, t)
}

// persist uses a context detached from the caller so a result computed just
// before shutdown is still recorded.
func (d *Dispatcher) persist(ctx context.Context, result task.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	logger := d.logger.With(zap.String("task_id", result.TaskID))

	if d.store != nil {
		if err := d.store.Save(ctx, result); err != nil {
			logger.Error("failed to store result", zap.Error(err))
		}
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, result); err != nil {
			logger.Error("failed to publish result", zap.Error(err))
		}
	}
}
