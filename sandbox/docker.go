package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

const cleanupTimeout = 5 * time.Second

// dockerClient is the subset of the Engine API the executor uses.
type dockerClient interface {
	Close() error
	ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerExecutor implements Executor using the Docker Engine API
type DockerExecutor struct {
	logger        *zap.Logger
	policy        Policy
	languages     map[string]Language
	workspaceRoot string
	cli           dockerClient
	fs            FileSystem
}

// DockerExecutorOption defines a functional option for DockerExecutor
type DockerExecutorOption func(*DockerExecutor)

// WithDockerFileSystem sets the FileSystem for DockerExecutor
func WithDockerFileSystem(fs FileSystem) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.fs = fs
	}
}

// WithDockerWorkspaceRoot sets the host directory workspaces are created in.
func WithDockerWorkspaceRoot(root string) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.workspaceRoot = root
	}
}

func withDockerClient(cli dockerClient) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.cli = cli
	}
}

// NewDockerExecutor creates a DockerExecutor. Unless a client is injected it
// connects using the standard DOCKER_* environment variables.
func NewDockerExecutor(logger *zap.Logger, policy Policy, languages map[string]Language, opts ...DockerExecutorOption) (*DockerExecutor, error) {
	executor := &DockerExecutor{
		logger:    logger,
		policy:    policy,
		languages: languages,
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.cli == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create docker client: %w", err)
		}
		executor.cli = cli
	}

	return executor, nil
}

// Close releases the Engine API connection.
func (d *DockerExecutor) Close() error {
	return d.cli.Close()
}

// Execute runs the source in a fresh container and waits for it under the
// policy deadline.
func (d *DockerExecutor) Execute(ctx context.Context, req Request) Outcome {
	logger := d.logger.With(zap.String("task_id", req.TaskID), zap.String("language", req.Language))

	lang, ok := d.languages[req.Language]
	if !ok {
		return d.fail(logger, fmt.Errorf("%w: %s", ErrUnknownLanguage, req.Language))
	}

	ws, err := prepareWorkspace(d.fs, d.workspaceRoot, req.TaskID, lang, req.Source)
	if err != nil {
		return d.fail(logger, err)
	}
	defer ws.release(logger)

	// Pulling and creating happen before the execution deadline starts, so
	// they get their own bound.
	launchCtx, cancelLaunch := context.WithTimeout(ctx, d.policy.launchTimeout())
	containerID, err := d.createContainer(launchCtx, lang, ws.dir, req.TaskID)
	cancelLaunch()
	if err != nil {
		return d.fail(logger, err)
	}
	defer d.removeContainer(logger, containerID)

	runCtx, cancel := context.WithTimeout(ctx, d.policy.Timeout)
	defer cancel()

	start := time.Now()
	if err := d.cli.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		if d.deadlineHit(ctx, runCtx) {
			return d.timedOut(logger, containerID)
		}
		return d.fail(logger, fmt.Errorf("start container: %w", err))
	}

	status, err := d.waitForExit(runCtx, containerID)
	elapsed := time.Since(start)
	if err != nil {
		if d.deadlineHit(ctx, runCtx) {
			return d.timedOut(logger, containerID)
		}
		return d.fail(logger, err)
	}

	logsCtx, cancelLogs := context.WithTimeout(ctx, d.policy.launchTimeout())
	defer cancelLogs()
	output, err := d.fetchLogs(logsCtx, containerID)
	if err != nil {
		return d.fail(logger, fmt.Errorf("fetch logs: %w", err))
	}

	logger.Debug("container exited",
		zap.Int64("exit_code", status.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	return Outcome{
		Output:       boundOutput(output, d.policy.OutputLimit),
		WallTime:     elapsed,
		TerminatedBy: TerminatedByExit,
		ExitCode:     int(status.StatusCode),
	}
}

func (d *DockerExecutor) createContainer(ctx context.Context, lang Language, dir, taskID string) (string, error) {
	pids := d.policy.PidsLimit

	cfg := &container.Config{
		Image:           lang.Image,
		Cmd:             lang.Command,
		User:            d.policy.User,
		WorkingDir:      MountPoint,
		NetworkDisabled: true,
		AttachStdout:    true,
		AttachStderr:    true,
		Labels:          map[string]string{"online-compiler.task-id": taskID},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   MountPoint,
			ReadOnly: true,
		}},
		Resources: container.Resources{
			Memory:     d.policy.MemoryBytes,
			MemorySwap: d.policy.MemoryBytes,
			NanoCPUs:   d.policy.NanoCPUs,
			PidsLimit:  &pids,
		},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,exec,size=64m"},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil && errdefs.IsNotFound(err) {
		d.logger.Info("pulling missing image", zap.String("image", lang.Image))
		if pullErr := d.pullImage(ctx, lang.Image); pullErr != nil {
			return "", pullErr
		}
		resp, err = d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	}
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	return resp.ID, nil
}

func (d *DockerExecutor) pullImage(ctx context.Context, ref string) error {
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	return nil
}

func (d *DockerExecutor) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (d *DockerExecutor) fetchLogs(ctx context.Context, containerID string) (string, error) {
	logs, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer logs.Close()

	combined := newCaptureBuffer(d.policy.captureLimit())
	if _, err := stdcopy.StdCopy(combined, combined, logs); err != nil {
		return "", err
	}
	return combined.String(), nil
}

// deadlineHit reports whether runCtx expired on its own deadline rather than
// through cancellation of the parent.
func (*DockerExecutor) deadlineHit(parent, runCtx context.Context) bool {
	return errors.Is(runCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

func (d *DockerExecutor) timedOut(logger *zap.Logger, containerID string) Outcome {
	killCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := d.cli.ContainerKill(killCtx, containerID, "SIGKILL"); err != nil && !errdefs.IsNotFound(err) {
		logger.Warn("failed to kill container after deadline", zap.String("container_id", containerID), zap.Error(err))
	}

	logger.Info("execution deadline exceeded", zap.Duration("timeout", d.policy.Timeout))
	return timeoutOutcome(d.policy.Timeout)
}

func (d *DockerExecutor) removeContainer(logger *zap.Logger, containerID string) {
	rmCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	err := d.cli.ContainerRemove(rmCtx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		logger.Warn("failed to remove container", zap.String("container_id", containerID), zap.Error(err))
	}
}

func (*DockerExecutor) fail(logger *zap.Logger, err error) Outcome {
	logger.Error("sandbox launch failed", zap.Error(err))
	return launchFailure(err)
}
