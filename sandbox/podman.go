package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// podmanInternalError is the exit status podman itself uses when it could not
// run the container at all.
const podmanInternalError = 125

// PodmanExecutor implements Executor using the podman CLI
type PodmanExecutor struct {
	logger        *zap.Logger
	policy        Policy
	languages     map[string]Language
	workspaceRoot string
	cmdRunner     CommandRunner
	fs            FileSystem
}

// PodmanExecutorOption defines a functional option for PodmanExecutor
type PodmanExecutorOption func(*PodmanExecutor)

// WithPodmanCommandRunner sets the CommandRunner for PodmanExecutor
func WithPodmanCommandRunner(cmdRunner CommandRunner) PodmanExecutorOption {
	return func(p *PodmanExecutor) {
		p.cmdRunner = cmdRunner
	}
}

// WithPodmanFileSystem sets the FileSystem for PodmanExecutor
func WithPodmanFileSystem(fs FileSystem) PodmanExecutorOption {
	return func(p *PodmanExecutor) {
		p.fs = fs
	}
}

// WithPodmanWorkspaceRoot sets the host directory workspaces are created in.
func WithPodmanWorkspaceRoot(root string) PodmanExecutorOption {
	return func(p *PodmanExecutor) {
		p.workspaceRoot = root
	}
}

// NewPodmanExecutor creates a new PodmanExecutor with default implementations and optional interfaces
func NewPodmanExecutor(logger *zap.Logger, policy Policy, languages map[string]Language, opts ...PodmanExecutorOption) *PodmanExecutor {
	executor := &PodmanExecutor{
		logger:    logger,
		policy:    policy,
		languages: languages,
		cmdRunner: &RealCommandRunner{OutputLimit: policy.captureLimit()},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the source in a podman container
func (p *PodmanExecutor) Execute(ctx context.Context, req Request) Outcome {
	logger := p.logger.With(zap.String("task_id", req.TaskID), zap.String("language", req.Language))

	lang, ok := p.languages[req.Language]
	if !ok {
		return p.fail(logger, fmt.Errorf("%w: %s", ErrUnknownLanguage, req.Language))
	}

	ws, err := prepareWorkspace(p.fs, p.workspaceRoot, req.TaskID, lang, req.Source)
	if err != nil {
		return p.fail(logger, err)
	}
	defer ws.release(logger)

	containerName := fmt.Sprintf("compiler-%s-%d", workspaceTag(req.TaskID), time.Now().UnixNano())
	defer p.removeContainer(logger, containerName)

	runCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := p.cmdRunner.RunCommand(runCtx, p.runArgs(containerName, lang, ws.dir))
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Info("execution deadline exceeded", zap.Duration("timeout", p.policy.Timeout))
		return timeoutOutcome(p.policy.Timeout)
	}
	if err != nil {
		return p.fail(logger, fmt.Errorf("failed to execute container: %w", err))
	}
	if exitCode == podmanInternalError {
		return p.fail(logger, fmt.Errorf("podman: %s", strings.TrimSpace(stderr)))
	}

	logger.Debug("container exited", zap.Int("exit_code", exitCode), zap.Duration("elapsed", elapsed))

	return Outcome{
		Output:       boundOutput(stdout+stderr, p.policy.OutputLimit),
		WallTime:     elapsed,
		TerminatedBy: TerminatedByExit,
		ExitCode:     exitCode,
	}
}

func (p *PodmanExecutor) runArgs(containerName string, lang Language, dir string) []string {
	args := []string{
		"podman", "run",
		"--name", containerName,
		"--rm",
		"-v", fmt.Sprintf("%s:%s:ro", dir, MountPoint),
		"--workdir", MountPoint,
		"--network", "none",
		"--memory", memoryFlag(p.policy.MemoryBytes),
		"--memory-swap", memoryFlag(p.policy.MemoryBytes),
		"--cpus", cpusFlag(p.policy.NanoCPUs),
		"--pids-limit", strconv.FormatInt(p.policy.PidsLimit, 10),
		"--read-only",
		"--tmpfs", "/tmp:rw,exec,size=64m",
		"--security-opt", "no-new-privileges",
		"--user", p.policy.User,
		"--cap-drop", "ALL",
		lang.Image,
	}
	return append(args, lang.Command...)
}

// removeContainer force-removes the container, which also kills it when the
// deadline left it running. It uses a fresh context so a cancelled caller
// cannot leak the container.
func (p *PodmanExecutor) removeContainer(logger *zap.Logger, containerName string) {
	rmCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	_, stderr, exitCode, err := p.cmdRunner.RunCommand(rmCtx, []string{"podman", "rm", "-f", "--ignore", containerName})
	if err != nil || exitCode != 0 {
		logger.Warn("failed to remove container",
			zap.String("container", containerName),
			zap.String("stderr", stderr),
			zap.Error(err),
		)
	}
}

func (*PodmanExecutor) fail(logger *zap.Logger, err error) Outcome {
	logger.Error("sandbox launch failed", zap.Error(err))
	return launchFailure(err)
}

func memoryFlag(bytes int64) string {
	const mib = 1024 * 1024
	if bytes%mib == 0 {
		return fmt.Sprintf("%dm", bytes/mib)
	}
	return fmt.Sprintf("%db", bytes)
}

func cpusFlag(nanoCPUs int64) string {
	return strconv.FormatFloat(float64(nanoCPUs)/1e9, 'f', -1, 64)
}
