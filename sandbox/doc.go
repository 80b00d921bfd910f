// Package sandbox runs untrusted source inside isolated containers.
//
// Every execution gets a fresh, task-scoped workspace on the host that holds
// the source under the language's fixed file name. The workspace is mounted
// read-only into a container with no network, a hard memory ceiling, a
// fractional CPU share, a pids limit and no capabilities. The wall-clock
// deadline is enforced by the caller: when it elapses the container is killed
// and the outcome reports a timeout regardless of what the container does.
//
// Two backends are provided. DockerExecutor talks to the Docker Engine API and
// pulls missing images on demand. PodmanExecutor drives the podman CLI
// through a CommandRunner.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, sandbox.Config{
//	    Backend:   sandbox.BackendDocker,
//	    Policy:    sandbox.DefaultPolicy(),
//	    Languages: sandbox.DefaultLanguages(),
//	})
//	outcome := executor.Execute(ctx, sandbox.Request{
//	    TaskID:   "42",
//	    Language: "python",
//	    Source:   "print('Hello, World!')",
//	})
package sandbox
