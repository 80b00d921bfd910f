package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/analyzer"
	"github.com/01cheese/OnlineCompiler/config"
	"github.com/01cheese/OnlineCompiler/logger"
)

func main() {
	fx.New(appOptions()).Run()
}

func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logger.NewFromConfig,

			// Infrastructure
			newRedisClient,
			newNATSConn,
			newQueue,
			newStore,
			newNotifier,

			// Execution pipeline
			analyzer.LoadPolicies,
			newExecutor,
			newDispatcher,

			// Transports
			newGateway,
			newWorker,
			newMCPServer,
		),

		fx.Invoke(
			runGateway,
			runWorker,
			runMCPServer,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}
