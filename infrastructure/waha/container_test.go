package waha

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedContainer(t *testing.T, responses map[string]struct {
	out string
	err error
}) (*DockerContainerManager, *[]string) {
	t.Helper()
	manager := NewDockerContainerManager("waha")
	executed := &[]string{}
	manager.runCommand = func(ctx context.Context, name string, args ...string) (string, error) {
		key := args[0]
		*executed = append(*executed, key)
		resp, ok := responses[key]
		require.True(t, ok, "unexpected docker subcommand %s", key)
		return resp.out, resp.err
	}
	return manager, executed
}

func TestContainerStatusRunning(t *testing.T) {
	manager, _ := scriptedContainer(t, map[string]struct {
		out string
		err error
	}{
		"inspect": {out: "true"},
	})

	status, err := manager.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.IsRunning)
}

func TestContainerStatusMissing(t *testing.T) {
	manager, _ := scriptedContainer(t, map[string]struct {
		out string
		err error
	}{
		"inspect": {out: "Error: No such object: waha", err: errors.New("exit status 1")},
	})

	status, err := manager.GetStatus(context.Background())
	require.NoError(t, err, "a missing container is a state, not an error")
	assert.False(t, status.Exists)
}

func TestEnsureRunningStartsStoppedContainer(t *testing.T) {
	manager, executed := scriptedContainer(t, map[string]struct {
		out string
		err error
	}{
		"inspect": {out: "false"},
		"start":   {out: "waha"},
	})

	ok, err := manager.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"inspect", "start"}, *executed)
}

func TestEnsureRunningSkipsRunningContainer(t *testing.T) {
	manager, executed := scriptedContainer(t, map[string]struct {
		out string
		err error
	}{
		"inspect": {out: "true"},
	})

	ok, err := manager.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"inspect"}, *executed)
}

func TestEnsureRunningRefusesToProvision(t *testing.T) {
	manager, _ := scriptedContainer(t, map[string]struct {
		out string
		err error
	}{
		"inspect": {out: "Error: No such object: waha", err: errors.New("exit status 1")},
	})

	_, err := manager.EnsureRunning(context.Background())
	assert.Error(t, err, "provisioning a missing container is an operator concern")
}
