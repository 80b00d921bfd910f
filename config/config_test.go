package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	lang := LanguageConfig{Image: "python:3.11-slim", FileName: "run.py", Command: []string{"python3", "run.py"}}
	return &Config{
		Logging: LoggingConfig{Mode: "production", Level: "info"},
		Sandbox: SandboxConfig{
			Backend:          "docker",
			TimeoutSec:       10,
			MemoryMB:         128,
			CPUs:             0.5,
			PidsLimit:        64,
			OutputLimit:      150000,
			Classification:   "markers",
			User:             "nobody",
			LaunchTimeoutSec: 120,
		},
		Languages: LanguagesConfig{Python: lang, JavaScript: lang, CPP: lang},
		Queue:     QueueConfig{Backend: "redis", Key: "compiler:tasks"},
		JobStore:  JobStoreConfig{Backend: "redis", TTLSec: 3600},
		Notifier:  NotifierConfig{Backend: "redis"},
		Worker:    WorkerConfig{Enabled: true, Concurrency: 4},
		Gateway:   GatewayConfig{Enabled: true, Addr: ":8000", WSWaitSec: 120},
		MCP:       MCPConfig{Transport: "stdio"},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "InvalidLoggingMode",
			mutate:  func(c *Config) { c.Logging.Mode = "verbose" },
			wantErr: "invalid logging.mode",
		},
		{
			name:    "UnsupportedSandboxBackend",
			mutate:  func(c *Config) { c.Sandbox.Backend = "local" },
			wantErr: "unsupported sandbox.backend: local",
		},
		{
			name:    "InvalidSandboxTimeout",
			mutate:  func(c *Config) { c.Sandbox.TimeoutSec = 0 },
			wantErr: "sandbox.timeout_sec must be positive, got: 0",
		},
		{
			name:    "InvalidSandboxMemory",
			mutate:  func(c *Config) { c.Sandbox.MemoryMB = -1 },
			wantErr: "sandbox.memory_mb must be positive",
		},
		{
			name:    "InvalidSandboxCPUs",
			mutate:  func(c *Config) { c.Sandbox.CPUs = 0 },
			wantErr: "sandbox.cpus must be positive",
		},
		{
			name:    "InvalidLaunchTimeout",
			mutate:  func(c *Config) { c.Sandbox.LaunchTimeoutSec = 0 },
			wantErr: "sandbox.launch_timeout_sec must be positive, got: 0",
		},
		{
			name:    "InvalidOutputLimit",
			mutate:  func(c *Config) { c.Sandbox.OutputLimit = 0 },
			wantErr: "sandbox.output_limit must be positive",
		},
		{
			name:    "InvalidClassification",
			mutate:  func(c *Config) { c.Sandbox.Classification = "guess" },
			wantErr: "invalid sandbox.classification",
		},
		{
			name:    "IncompleteLanguage",
			mutate:  func(c *Config) { c.Languages.CPP.Command = nil },
			wantErr: "languages.cpp requires image, file_name and command",
		},
		{
			name:    "UnsupportedQueueBackend",
			mutate:  func(c *Config) { c.Queue.Backend = "rabbitmq" },
			wantErr: "unsupported queue.backend: rabbitmq",
		},
		{
			name:    "UnsupportedJobStoreBackend",
			mutate:  func(c *Config) { c.JobStore.Backend = "postgres" },
			wantErr: "unsupported jobstore.backend",
		},
		{
			name:    "NegativeTTL",
			mutate:  func(c *Config) { c.JobStore.TTLSec = -1 },
			wantErr: "jobstore.ttl_sec must not be negative",
		},
		{
			name:    "UnsupportedNotifierBackend",
			mutate:  func(c *Config) { c.Notifier.Backend = "kafka" },
			wantErr: "unsupported notifier.backend",
		},
		{
			name:    "InvalidWorkerConcurrency",
			mutate:  func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr: "worker.concurrency must be positive, got: 0",
		},
		{
			name: "InvalidMCPTransport",
			mutate: func(c *Config) {
				c.MCP.Enabled = true
				c.MCP.Transport = "grpc"
			},
			wantErr: "invalid mcp.transport",
		},
		{
			name: "NothingEnabled",
			mutate: func(c *Config) {
				c.Gateway.Enabled = false
				c.Worker.Enabled = false
			},
			wantErr: "at least one of gateway, worker or mcp must be enabled",
		},
		{
			name: "MemoryQueueWithoutWorker",
			mutate: func(c *Config) {
				c.Queue.Backend = "memory"
				c.Worker.Enabled = false
			},
			wantErr: "queue.backend memory requires worker.enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("DisabledWorkerSkipsConcurrency", func(t *testing.T) {
		cfg := validConfig()
		cfg.Worker.Enabled = false
		cfg.Worker.Concurrency = 0
		assert.NoError(t, cfg.validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "docker", cfg.Sandbox.Backend)
		assert.Equal(t, 10, cfg.Sandbox.TimeoutSec)
		assert.Equal(t, 128, cfg.Sandbox.MemoryMB)
		assert.InDelta(t, 0.5, cfg.Sandbox.CPUs, 1e-9)
		assert.Equal(t, 150000, cfg.Sandbox.OutputLimit)
		assert.Equal(t, "markers", cfg.Sandbox.Classification)
		assert.Equal(t, "python:3.11-slim", cfg.Languages.Python.Image)
		assert.Equal(t, []string{"node", "/sandbox/script.js"}, cfg.Languages.JavaScript.Command)
		assert.Equal(t, "redis", cfg.Queue.Backend)
		assert.True(t, cfg.Gateway.Enabled)
		assert.False(t, cfg.MCP.Enabled)
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
sandbox:
  backend: podman
  timeout_sec: 5
queue:
  backend: memory
notifier:
  backend: memory
jobstore:
  backend: memory
gateway:
  allowed_origins:
    - https://compiler.example
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "podman", cfg.Sandbox.Backend)
		assert.Equal(t, 5, cfg.Sandbox.TimeoutSec)
		assert.Equal(t, 128, cfg.Sandbox.MemoryMB)
		assert.Equal(t, "memory", cfg.Queue.Backend)
		assert.Equal(t, []string{"https://compiler.example"}, cfg.Gateway.AllowedOrigins)
	})

	t.Run("EnvironmentOverridesFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sandbox:\n  timeout_sec: 5\n"), 0o644))
		t.Setenv("COMPILER_SANDBOX_TIMEOUT_SEC", "7")
		t.Setenv("COMPILER_WORKER_CONCURRENCY", "2")

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Sandbox.TimeoutSec)
		assert.Equal(t, 2, cfg.Worker.Concurrency)
	})

	t.Run("InvalidFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sandbox: [unclosed"), 0o644))

		_, err := Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		t.Setenv("COMPILER_SANDBOX_MEMORY_MB", "0")

		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation error")
	})
}

func TestDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "10s", cfg.GetTimeout().String())
	assert.Equal(t, "2m0s", cfg.GetLaunchTimeout().String())
	assert.Equal(t, "1h0m0s", cfg.GetResultTTL().String())
	assert.Equal(t, "2m0s", cfg.GetWSWait().String())
}
