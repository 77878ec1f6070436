package docker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func skipIfNoDocker(t *testing.T) Client {
	t.Helper()
	ctx := context.Background()
	cli, err := NewDockerClient(ctx, "")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

func cleanupContainer(t *testing.T, cli Client, name string) {
	t.Helper()
	timeout := 5 * time.Second
	ctx := context.Background()
	cli.StopContainer(ctx, name, &timeout)
	cli.RemoveContainer(ctx, name, RemoveOptions{Force: true, RemoveVolumes: true})
}

// Test container name prefix to identify test containers
const testPrefix = "devstack-test-"

const testImage = "alpine:3.19"

// =============================================================================
// Unit Tests
// =============================================================================

func TestEnvList_Sorted(t *testing.T) {
	env := map[string]string{"REDIS_HOST": "redis", "DB_HOST": "mariadb", "APP_ENV": "dev"}
	assert.Equal(t, []string{"APP_ENV=dev", "DB_HOST=mariadb", "REDIS_HOST=redis"}, envList(env))
	assert.Nil(t, envList(nil))
}

func TestDockerError_Unwrap(t *testing.T) {
	err := NewDockerError("Ping", "", "", "refused", ErrConnectionFailed)
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	assert.Equal(t, "Ping: refused", err.Error())

	err = NewDockerError("StartContainer", "container", "shop_php", "container not found", ErrContainerNotFound)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "StartContainer container shop_php: container not found", err.Error())
}

// =============================================================================
// Engine Tests (skipped without a Docker daemon)
// =============================================================================

func TestDockerClient_Ping(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NoError(t, cli.Ping(context.Background()))
}

func TestDockerClient_ImageExists_Missing(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	exists, err := cli.ImageExists(context.Background(), "devstack-test/does-not-exist:0.0.0")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDockerClient_InspectMissingContainer(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	_, err := cli.InspectContainer(context.Background(), testPrefix+"missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDockerClient_ContainerLifecycle(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()
	ctx := context.Background()

	if err := cli.PullImage(ctx, testImage); err != nil {
		t.Skip("cannot pull test image:", err)
	}

	name := testPrefix + "lifecycle"
	cleanupContainer(t, cli, name)
	defer cleanupContainer(t, cli, name)

	spec := domain.ContainerSpec{
		Name:    name,
		Image:   "alpine",
		Tag:     "3.19",
		Command: []string{"sleep", "300"},
		Env:     map[string]string{"DEVSTACK_TEST": "1"},
		Labels:  map[string]string{"com.devstack.managed": "true"},
	}

	id, err := cli.CreateContainer(ctx, spec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = cli.CreateContainer(ctx, spec)
	assert.ErrorIs(t, err, ErrContainerAlreadyExists)

	require.NoError(t, cli.StartContainer(ctx, name))

	info, err := cli.InspectContainer(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name)
	assert.Equal(t, testImage, info.Image)
	assert.Equal(t, "running", info.State)

	listed, err := cli.ListContainers(ctx, ListOptions{All: true, Labels: map[string]string{"com.devstack.managed": "true"}})
	require.NoError(t, err)
	found := false
	for _, c := range listed {
		if c.Name == name {
			found = true
		}
	}
	assert.True(t, found)

	timeout := time.Second
	require.NoError(t, cli.StopContainer(ctx, name, &timeout))
	require.NoError(t, cli.RemoveContainer(ctx, name, RemoveOptions{Force: true}))

	_, err = cli.InspectContainer(ctx, name)
	assert.True(t, IsNotFound(err))
}
