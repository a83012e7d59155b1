package waha

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DockerContainerManager manages the local WAHA container through the docker
// CLI. It only exists as a CONNECTION_REFUSED recovery precondition; the
// orchestrator never starts containers proactively.
type DockerContainerManager struct {
	containerName string

	// runCommand is swapped out in tests.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

func NewDockerContainerManager(containerName string) *DockerContainerManager {
	return &DockerContainerManager{
		containerName: containerName,
		runCommand:    runDockerCommand,
	}
}

func runDockerCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (m *DockerContainerManager) GetStatus(ctx context.Context) (ContainerStatus, error) {
	out, err := m.runCommand(ctx, "docker", "inspect", "--format", "{{.State.Running}}", m.containerName)
	if err != nil {
		if strings.Contains(strings.ToLower(out), "no such object") {
			return ContainerStatus{Exists: false, IsRunning: false}, nil
		}
		return ContainerStatus{}, fmt.Errorf("docker inspect %s: %w", m.containerName, err)
	}
	return ContainerStatus{Exists: true, IsRunning: out == "true"}, nil
}

// EnsureRunning starts the container if it exists and is stopped. A missing
// container is not created here: provisioning is an operator concern.
func (m *DockerContainerManager) EnsureRunning(ctx context.Context) (bool, error) {
	status, err := m.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	if !status.Exists {
		return false, fmt.Errorf("container %s does not exist", m.containerName)
	}
	if status.IsRunning {
		return true, nil
	}

	logrus.Infof("Starting container %s", m.containerName)
	if out, err := m.runCommand(ctx, "docker", "start", m.containerName); err != nil {
		return false, fmt.Errorf("docker start %s: %s: %w", m.containerName, out, err)
	}
	return true, nil
}
