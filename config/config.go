package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COMPILER_SANDBOX_TIMEOUT_SEC.
const EnvPrefix = "COMPILER"

// Config represents the application configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	JobStore  JobStoreConfig  `mapstructure:"jobstore"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	// File enables a rotating log file next to the console output.
	File string `mapstructure:"file"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend          string  `mapstructure:"backend"`
	WorkspaceRoot    string  `mapstructure:"workspace_root"`
	TimeoutSec       int     `mapstructure:"timeout_sec"`
	LaunchTimeoutSec int     `mapstructure:"launch_timeout_sec"`
	MemoryMB         int     `mapstructure:"memory_mb"`
	CPUs             float64 `mapstructure:"cpus"`
	PidsLimit        int     `mapstructure:"pids_limit"`
	OutputLimit      int     `mapstructure:"output_limit"`
	Classification   string  `mapstructure:"classification"`
	User             string  `mapstructure:"user"`
}

// LanguagesConfig holds the runtime of every supported language
type LanguagesConfig struct {
	Python     LanguageConfig `mapstructure:"python"`
	JavaScript LanguageConfig `mapstructure:"javascript"`
	CPP        LanguageConfig `mapstructure:"cpp"`
}

// LanguageConfig describes the image and entry point of one language
type LanguageConfig struct {
	Image    string   `mapstructure:"image"`
	FileName string   `mapstructure:"file_name"`
	Command  []string `mapstructure:"command"`
}

// RedisConfig holds the shared redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig selects the work queue backend
type QueueConfig struct {
	Backend  string      `mapstructure:"backend"`
	Key      string      `mapstructure:"key"`
	Capacity int         `mapstructure:"capacity"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds the kafka queue settings
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// JobStoreConfig selects the result store backend
type JobStoreConfig struct {
	Backend string `mapstructure:"backend"`
	TTLSec  int    `mapstructure:"ttl_sec"`
}

// NotifierConfig selects the result notifier backend
type NotifierConfig struct {
	Backend string `mapstructure:"backend"`
	NATSURL string `mapstructure:"nats_url"`
}

// WorkerConfig holds worker pool settings
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

// GatewayConfig holds HTTP gateway settings
type GatewayConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	WSWaitSec      int      `mapstructure:"ws_wait_sec"`
}

// MCPConfig holds MCP server settings
type MCPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	return Load(".", "./config")
}

// Load reads config.yaml from the first path that has one, applies
// environment overrides and validates the result.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.workspace_root", "")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.memory_mb", 128)
	v.SetDefault("sandbox.cpus", 0.5)
	v.SetDefault("sandbox.pids_limit", 64)
	v.SetDefault("sandbox.output_limit", 150000)
	v.SetDefault("sandbox.classification", "markers")
	v.SetDefault("sandbox.user", "nobody")
	v.SetDefault("sandbox.launch_timeout_sec", 120)

	v.SetDefault("languages.python.image", "python:3.11-slim")
	v.SetDefault("languages.python.file_name", "run.py")
	v.SetDefault("languages.python.command", []string{"python3", "-u", "/sandbox/run.py"})

	v.SetDefault("languages.javascript.image", "node:20-alpine")
	v.SetDefault("languages.javascript.file_name", "script.js")
	v.SetDefault("languages.javascript.command", []string{"node", "/sandbox/script.js"})

	v.SetDefault("languages.cpp.image", "gcc:13")
	v.SetDefault("languages.cpp.file_name", "main.cpp")
	v.SetDefault("languages.cpp.command", []string{"sh", "-c", "g++ -O2 -o /tmp/a.out /sandbox/main.cpp && /tmp/a.out"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.key", "compiler:tasks")
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("queue.kafka.topic", "compiler-tasks")
	v.SetDefault("queue.kafka.group_id", "compiler-workers")

	v.SetDefault("jobstore.backend", "redis")
	v.SetDefault("jobstore.ttl_sec", 3600)

	v.SetDefault("notifier.backend", "redis")
	v.SetDefault("notifier.nats_url", "nats://127.0.0.1:4222")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 4)

	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.addr", ":8000")
	v.SetDefault("gateway.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("gateway.ws_wait_sec", 120)

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.http_port", 8080)
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if err := c.Sandbox.validate(); err != nil {
		return err
	}

	for name, lang := range map[string]LanguageConfig{
		"python":     c.Languages.Python,
		"javascript": c.Languages.JavaScript,
		"cpp":        c.Languages.CPP,
	} {
		if lang.Image == "" || lang.FileName == "" || len(lang.Command) == 0 {
			return fmt.Errorf("languages.%s requires image, file_name and command", name)
		}
	}

	if !oneOf(c.Queue.Backend, "redis", "kafka", "memory") {
		return fmt.Errorf("unsupported queue.backend: %s", c.Queue.Backend)
	}
	if !oneOf(c.JobStore.Backend, "redis", "memory") {
		return fmt.Errorf("unsupported jobstore.backend: %s", c.JobStore.Backend)
	}
	if c.JobStore.TTLSec < 0 {
		return fmt.Errorf("jobstore.ttl_sec must not be negative, got: %d", c.JobStore.TTLSec)
	}
	if !oneOf(c.Notifier.Backend, "redis", "nats", "memory") {
		return fmt.Errorf("unsupported notifier.backend: %s", c.Notifier.Backend)
	}

	if c.Worker.Enabled && c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got: %d", c.Worker.Concurrency)
	}

	if c.Gateway.Enabled && c.Gateway.WSWaitSec <= 0 {
		return fmt.Errorf("gateway.ws_wait_sec must be positive, got: %d", c.Gateway.WSWaitSec)
	}

	if c.MCP.Enabled && c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if !c.Gateway.Enabled && !c.Worker.Enabled && !c.MCP.Enabled {
		return fmt.Errorf("at least one of gateway, worker or mcp must be enabled")
	}

	// In-process backends cannot connect a gateway to a worker in another
	// process.
	if c.Gateway.Enabled && !c.Worker.Enabled && c.Queue.Backend == "memory" {
		return fmt.Errorf("queue.backend memory requires worker.enabled in the same process")
	}

	return nil
}

func (s SandboxConfig) validate() error {
	if !oneOf(s.Backend, "docker", "podman") {
		return fmt.Errorf("unsupported sandbox.backend: %s", s.Backend)
	}
	if s.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", s.TimeoutSec)
	}
	if s.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", s.MemoryMB)
	}
	if s.CPUs <= 0 {
		return fmt.Errorf("sandbox.cpus must be positive, got: %g", s.CPUs)
	}
	if s.PidsLimit <= 0 {
		return fmt.Errorf("sandbox.pids_limit must be positive, got: %d", s.PidsLimit)
	}
	if s.LaunchTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.launch_timeout_sec must be positive, got: %d", s.LaunchTimeoutSec)
	}
	if s.OutputLimit <= 0 {
		return fmt.Errorf("sandbox.output_limit must be positive, got: %d", s.OutputLimit)
	}
	if !oneOf(s.Classification, "exit_status", "markers") {
		return fmt.Errorf("invalid sandbox.classification: %s, must be 'exit_status' or 'markers'", s.Classification)
	}
	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetLaunchTimeout returns the bound on pulling and creating a container
func (c *Config) GetLaunchTimeout() time.Duration {
	return time.Duration(c.Sandbox.LaunchTimeoutSec) * time.Second
}

// GetResultTTL returns how long stored results are kept. Zero keeps them
// forever.
func (c *Config) GetResultTTL() time.Duration {
	return time.Duration(c.JobStore.TTLSec) * time.Second
}

// GetWSWait returns how long a WebSocket waits for its result.
func (c *Config) GetWSWait() time.Duration {
	return time.Duration(c.Gateway.WSWaitSec) * time.Second
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
