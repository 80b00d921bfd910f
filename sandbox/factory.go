package sandbox

import (
	"fmt"

	"go.uber.org/zap"
)

// Supported backends.
const (
	BackendDocker = "docker"
	BackendPodman = "podman"
)

// Config selects and parameterizes an executor backend.
type Config struct {
	Backend       string
	WorkspaceRoot string
	Policy        Policy
	Languages     map[string]Language
}

// NewExecutor creates an appropriate sandbox executor based on the configuration
func NewExecutor(logger *zap.Logger, cfg Config) (Executor, error) {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages()
	}

	switch cfg.Backend {
	case BackendDocker:
		executor, err := NewDockerExecutor(logger, cfg.Policy, languages, WithDockerWorkspaceRoot(cfg.WorkspaceRoot))
		if err != nil {
			return nil, err
		}
		return executor, nil
	case BackendPodman:
		return NewPodmanExecutor(logger, cfg.Policy, languages, WithPodmanWorkspaceRoot(cfg.WorkspaceRoot)), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
