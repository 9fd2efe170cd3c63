package infra

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// Seed populates a freshly provisioned tenant with sample data by running
// the demo-seeder image as a one-shot container on the tenant's network.
// The seeder connects to the tenant database directly, so it runs inside
// the tenant namespace, not through the public API.
func (d *DockerDriver) Seed(ctx context.Context, slug, dsn string) error {
	cfg := &container.Config{
		Image: d.seedImage,
		Env: []string{
			"MB_TENANT=" + slug,
			"DATABASE_URL=" + dsn,
		},
	}

	hostCfg := &container.HostConfig{
		AutoRemove: true,
	}

	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			namespaceName(slug): {},
		},
	}

	resp, err := d.client.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, "")
	if err != nil {
		return fmt.Errorf("infra.DockerDriver.Seed: create: %w", err)
	}

	err = d.client.ContainerStart(ctx, resp.ID, container.StartOptions{})
	if err != nil {
		// Clean up the created container since AutoRemove only applies to running containers.
		_ = d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("infra.DockerDriver.Seed: start: %w", err)
	}

	waitCh, errCh := d.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case result := <-waitCh:
		if result.Error != nil {
			return fmt.Errorf("infra.DockerDriver.Seed: %s", result.Error.Message)
		}
		if result.StatusCode != 0 {
			return fmt.Errorf("infra.DockerDriver.Seed: seeder exited with code %d", result.StatusCode)
		}
		return nil
	case waitErr := <-errCh:
		return fmt.Errorf("infra.DockerDriver.Seed: wait: %w", waitErr)
	case <-ctx.Done():
		return fmt.Errorf("infra.DockerDriver.Seed: wait: %w", ctx.Err())
	}
}
