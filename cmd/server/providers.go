package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/analyzer"
	"github.com/01cheese/OnlineCompiler/config"
	"github.com/01cheese/OnlineCompiler/coordinator"
	"github.com/01cheese/OnlineCompiler/dispatcher"
	"github.com/01cheese/OnlineCompiler/gateway"
	"github.com/01cheese/OnlineCompiler/jobstore"
	"github.com/01cheese/OnlineCompiler/mcpserver"
	"github.com/01cheese/OnlineCompiler/notifier"
	"github.com/01cheese/OnlineCompiler/queue"
	"github.com/01cheese/OnlineCompiler/sandbox"
	"github.com/01cheese/OnlineCompiler/task"
	"github.com/01cheese/OnlineCompiler/worker"
)

const (
	connectTimeout = 5 * time.Second
	drainTimeout   = 30 * time.Second
)

// newRedisClient returns nil when no component is backed by Redis.
func newRedisClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) redis.UniversalClient {
	if !usesRedis(cfg) {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
			}
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Queue.Backend == queue.BackendRedis ||
		cfg.JobStore.Backend == jobstore.BackendRedis ||
		cfg.Notifier.Backend == notifier.BackendRedis
}

// newNATSConn returns nil unless the notifier is backed by NATS.
func newNATSConn(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*nats.Conn, error) {
	if cfg.Notifier.Backend != notifier.BackendNATS {
		return nil, nil
	}

	nc, err := nats.Connect(cfg.Notifier.NATSURL,
		nats.Name("online-compiler"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.Notifier.NATSURL, err)
	}
	log.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return nc.Drain()
		},
	})

	return nc, nil
}

func newQueue(lc fx.Lifecycle, cfg *config.Config, rdb redis.UniversalClient) (queue.Queue, error) {
	q, err := queue.New(queue.Config{
		Backend:  cfg.Queue.Backend,
		Key:      cfg.Queue.Key,
		Capacity: cfg.Queue.Capacity,
		Kafka: queue.KafkaConfig{
			Brokers: cfg.Queue.Kafka.Brokers,
			Topic:   cfg.Queue.Kafka.Topic,
			GroupID: cfg.Queue.Kafka.GroupID,
		},
	}, rdb)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return q.Close()
		},
	})

	return q, nil
}

func newStore(cfg *config.Config, rdb redis.UniversalClient) (jobstore.Store, error) {
	switch cfg.JobStore.Backend {
	case jobstore.BackendRedis:
		return jobstore.NewRedisStore(rdb, cfg.GetResultTTL()), nil
	case jobstore.BackendMemory:
		return jobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported jobstore backend: %s", cfg.JobStore.Backend)
	}
}

func newNotifier(cfg *config.Config, rdb redis.UniversalClient, nc *nats.Conn) (notifier.Notifier, error) {
	switch cfg.Notifier.Backend {
	case notifier.BackendRedis:
		return notifier.NewRedisNotifier(rdb), nil
	case notifier.BackendNATS:
		return notifier.NewNATSNotifier(nc), nil
	case notifier.BackendMemory:
		return notifier.NewMemoryNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported notifier backend: %s", cfg.Notifier.Backend)
	}
}

// sandboxConfig converts the sandbox and language sections into executor
// settings.
func sandboxConfig(cfg *config.Config) sandbox.Config {
	lang := func(name string, l config.LanguageConfig) sandbox.Language {
		return sandbox.Language{
			Name:     name,
			Image:    l.Image,
			FileName: l.FileName,
			Command:  l.Command,
		}
	}

	return sandbox.Config{
		Backend:       cfg.Sandbox.Backend,
		WorkspaceRoot: cfg.Sandbox.WorkspaceRoot,
		Policy: sandbox.Policy{
			Timeout:       cfg.GetTimeout(),
			MemoryBytes:   int64(cfg.Sandbox.MemoryMB) * 1024 * 1024,
			NanoCPUs:      int64(cfg.Sandbox.CPUs * 1e9),
			PidsLimit:     int64(cfg.Sandbox.PidsLimit),
			OutputLimit:   cfg.Sandbox.OutputLimit,
			User:          cfg.Sandbox.User,
			LaunchTimeout: cfg.GetLaunchTimeout(),
		},
		Languages: map[string]sandbox.Language{
			task.LanguagePython:     lang(task.LanguagePython, cfg.Languages.Python),
			task.LanguageJavaScript: lang(task.LanguageJavaScript, cfg.Languages.JavaScript),
			task.LanguageCPP:        lang(task.LanguageCPP, cfg.Languages.CPP),
		},
	}
}

func newExecutor(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (sandbox.Executor, error) {
	sc := sandboxConfig(cfg)
	log.Info("sandbox configured",
		zap.String("sandbox.backend", sc.Backend),
		zap.Duration("sandbox.timeout", sc.Policy.Timeout),
		zap.Int64("sandbox.memory_bytes", sc.Policy.MemoryBytes),
		zap.Int64("sandbox.nano_cpus", sc.Policy.NanoCPUs),
		zap.Int("sandbox.output_limit", sc.Policy.OutputLimit),
		zap.String("languages.python.image", sc.Languages[task.LanguagePython].Image),
		zap.String("languages.javascript.image", sc.Languages[task.LanguageJavaScript].Image),
		zap.String("languages.cpp.image", sc.Languages[task.LanguageCPP].Image),
	)

	exec, err := sandbox.NewExecutor(log, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox executor: %w", err)
	}

	if closer, ok := exec.(interface{ Close() error }); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return closer.Close()
			},
		})
	}

	return exec, nil
}

// newDispatcher builds one coordinator per supported language.
func newDispatcher(
	cfg *config.Config,
	log *zap.Logger,
	policies *analyzer.Policies,
	exec sandbox.Executor,
	store jobstore.Store,
	n notifier.Notifier,
) (*dispatcher.Dispatcher, error) {
	mode, err := coordinator.ParseMode(cfg.Sandbox.Classification)
	if err != nil {
		return nil, err
	}

	d := dispatcher.New(log, store, n)
	for _, lang := range []string{task.LanguagePython, task.LanguageJavaScript, task.LanguageCPP} {
		a, err := analyzer.New(lang, policies)
		if err != nil {
			return nil, fmt.Errorf("failed to create analyzer for %s: %w", lang, err)
		}
		d.Register(lang, coordinator.New(log, lang, a, exec, mode))
	}

	return d, nil
}

// newGateway returns nil when the gateway is disabled.
func newGateway(cfg *config.Config, log *zap.Logger, q queue.Queue, store jobstore.Store, n notifier.Notifier) *gateway.Server {
	if !cfg.Gateway.Enabled {
		return nil
	}
	return gateway.New(log, gateway.Config{
		Addr:           cfg.Gateway.Addr,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		WSWaitTimeout:  cfg.GetWSWait(),
	}, q, store, n)
}

// newWorker returns nil when the worker is disabled.
func newWorker(cfg *config.Config, log *zap.Logger, q queue.Queue, d *dispatcher.Dispatcher) (*worker.Pool, error) {
	if !cfg.Worker.Enabled {
		return nil, nil
	}
	return worker.New(log, q, d, cfg.Worker.Concurrency)
}

// newMCPServer returns nil when the MCP server is disabled.
func newMCPServer(cfg *config.Config, log *zap.Logger, d *dispatcher.Dispatcher) (*mcpserver.MCPServer, error) {
	if !cfg.MCP.Enabled {
		return nil, nil
	}
	return mcpserver.New(cfg, log, d)
}

func runGateway(lc fx.Lifecycle, server *gateway.Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

func runWorker(lc fx.Lifecycle, log *zap.Logger, pool *worker.Pool) {
	if pool == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := pool.Run(ctx); err != nil {
					log.Error("worker loop failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return pool.Stop(drainTimeout)
		},
	})
}

func runMCPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer, shutdowner fx.Shutdowner) {
	if server == nil {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				var err error
				switch cfg.MCP.Transport {
				case "stdio":
					err = server.ServeStdio()
				case "http":
					err = server.ServeHTTP()
				default:
					err = fmt.Errorf("unsupported transport: %s", cfg.MCP.Transport)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("MCP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
