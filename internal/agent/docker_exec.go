package agent

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// defaultExecImage is the image code_execution runs commands in when the
// registry isn't overridden; it carries no task-specific tooling by design.
const defaultExecImage = "alpine:latest"

const defaultExecMemoryMB = 512

// CodeExecution is a sandboxed agent that runs its prompt as a shell command
// inside an ephemeral, network-isolated container and returns its stdout
// as the summary; on a non-zero exit, stderr is carried in the error.
type CodeExecution struct {
	client   *client.Client
	image    string
	memoryMB int64
}

// NewCodeExecution creates a code_execution agent against the local Docker
// daemon (via the standard DOCKER_HOST/TLS environment, client.FromEnv).
// It fails if the daemon does not answer a ping.
func NewCodeExecution() (*CodeExecution, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("code_execution: docker client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("code_execution: docker daemon unreachable: %w", err)
	}
	return &CodeExecution{client: cli, image: defaultExecImage, memoryMB: defaultExecMemoryMB * 1024 * 1024}, nil
}

func (c *CodeExecution) Type() string { return "code_execution" }

func (c *CodeExecution) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	if in.Prompt == "" {
		return Result{}, Permanent(fmt.Errorf("code_execution: empty command"))
	}

	resp, err := c.client.ContainerCreate(ctx, &container.Config{
		Image:      c.image,
		Cmd:        []string{"sh", "-c", in.Prompt},
		WorkingDir: "/workspace",
		Tty:        false,
	}, &container.HostConfig{
		Resources:   container.Resources{Memory: c.memoryMB},
		NetworkMode: container.NetworkMode("none"),
		AutoRemove:  true,
	}, nil, nil, "")
	if err != nil {
		return Result{}, Transient(fmt.Errorf("code_execution: create container: %w", err))
	}
	containerID := resp.ID

	if log != nil {
		log(LogLine{Level: "info", Message: "starting sandboxed container " + containerID[:12]})
	}

	if err := c.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return Result{}, Transient(fmt.Errorf("code_execution: start container: %w", err))
	}

	statusCh, errCh := c.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return Result{}, Transient(fmt.Errorf("code_execution: wait container: %w", err))
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		_ = c.client.ContainerKill(ctx, containerID, "SIGKILL")
		return Result{}, Transient(fmt.Errorf("code_execution: %w", ctx.Err()))
	}

	out, err := c.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return Result{}, Transient(fmt.Errorf("code_execution: get logs: %w", err))
	}
	defer out.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdoutBuf, &stderrBuf, out)

	if exitCode != 0 {
		return Result{}, Permanent(fmt.Errorf("code_execution: exit %d: %s", exitCode, stderrBuf.String()))
	}

	return Result{Summary: stdoutBuf.String()}, nil
}

// Close releases the underlying Docker client connection.
func (c *CodeExecution) Close() error {
	return c.client.Close()
}
