package infra

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

const (
	postgresImage = "postgres:16-alpine"
	dataMountDir  = "/var/lib/postgresql/data"
)

// Allocation is what the driver hands back for a provisioned tenant.
type Allocation struct {
	Namespace          string
	DBConnectionString string
	APIURL             string
}

// AdminCredentials is the initial tenant admin login injected into the
// tenant API container. Only the argon2id hash ever reaches the container;
// the plaintext stays with the provisioning result.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// DockerDriver allocates isolated per-tenant infrastructure on a Docker
// host: a dedicated network (the tenant's namespace), a postgres container
// with its own volume, and the tenant API container.
type DockerDriver struct {
	client       *client.Client
	tenantImage  string
	seedImage    string
	cpuLimit     string
	memLimit     string
	apiURLFormat string
}

func NewDockerDriver(host, tenantImage, seedImage, cpuLimit, memLimit, apiURLFormat string) (*DockerDriver, error) {
	opts := []client.Opt{
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("infra.NewDockerDriver: %w", err)
	}

	return &DockerDriver{
		client:       c,
		tenantImage:  tenantImage,
		seedImage:    seedImage,
		cpuLimit:     cpuLimit,
		memLimit:     memLimit,
		apiURLFormat: apiURLFormat,
	}, nil
}

// Allocate brings up the full infrastructure set for one tenant. A partial
// failure returns an error and leaves cleanup to Deallocate, which the
// orchestrator calls as its compensating action.
func (d *DockerDriver) Allocate(ctx context.Context, slug string, overrides *domain.ResourceOverrides, creds *AdminCredentials) (*Allocation, error) {
	namespace := namespaceName(slug)

	_, err := d.client.NetworkCreate(ctx, namespace, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{"mechanicbuddy.tenant": slug},
	})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: create network: %w", err)
	}

	_, err = d.client.VolumeCreate(ctx, volume.CreateOptions{
		Name:   dataVolumeName(slug),
		Labels: map[string]string{"mechanicbuddy.tenant": slug},
	})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: create volume: %w", err)
	}

	dbPassword, err := randomHex(16)
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: %w", err)
	}

	dbUser := "mb_" + strings.ReplaceAll(slug, "-", "_")
	dbName := dbUser

	dbContainerID, err := d.createContainer(ctx, dbContainerName(slug), namespace, &containerSpec{
		image: postgresImage,
		env: []string{
			"POSTGRES_USER=" + dbUser,
			"POSTGRES_PASSWORD=" + dbPassword,
			"POSTGRES_DB=" + dbName,
		},
		volumeName: dataVolumeName(slug),
		mountPoint: dataMountDir,
	})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: db container: %w", err)
	}

	err = d.client.ContainerStart(ctx, dbContainerID, container.StartOptions{})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: start db: %w", err)
	}

	dsn := fmt.Sprintf("host=%s port=5432 user=%s password=%s dbname=%s sslmode=disable",
		dbContainerName(slug), dbUser, dbPassword, dbName)

	cpuLimit, memLimit := d.cpuLimit, d.memLimit
	if overrides != nil {
		if overrides.CPULimit != "" {
			cpuLimit = overrides.CPULimit
		}
		if overrides.MemLimit != "" {
			memLimit = overrides.MemLimit
		}
	}

	env := []string{
		"MB_TENANT=" + slug,
		"DATABASE_URL=" + dsn,
	}
	if creds != nil {
		env = append(env,
			"MB_ADMIN_EMAIL="+creds.Email,
			"MB_ADMIN_PASSWORD_HASH="+creds.PasswordHash,
		)
	}

	apiContainerID, err := d.createContainer(ctx, apiContainerName(slug), namespace, &containerSpec{
		image:    d.tenantImage,
		env:      env,
		cpuLimit: cpuLimit,
		memLimit: memLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: api container: %w", err)
	}

	err = d.client.ContainerStart(ctx, apiContainerID, container.StartOptions{})
	if err != nil {
		return nil, fmt.Errorf("infra.DockerDriver.Allocate: start api: %w", err)
	}

	return &Allocation{
		Namespace:          namespace,
		DBConnectionString: dsn,
		APIURL:             fmt.Sprintf(d.apiURLFormat, slug),
	}, nil
}

// Deallocate tears down everything Allocate may have created. Idempotent:
// resources that no longer exist are skipped, so the orchestrator's
// compensating action and the watchdog can both call it safely.
func (d *DockerDriver) Deallocate(ctx context.Context, slug string) error {
	for _, name := range []string{apiContainerName(slug), dbContainerName(slug)} {
		err := d.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
		if err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("infra.DockerDriver.Deallocate: remove %s: %w", name, err)
		}
	}

	err := d.client.VolumeRemove(ctx, dataVolumeName(slug), true)
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("infra.DockerDriver.Deallocate: remove volume: %w", err)
	}

	err = d.client.NetworkRemove(ctx, namespaceName(slug))
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("infra.DockerDriver.Deallocate: remove network: %w", err)
	}

	return nil
}

type containerSpec struct {
	image      string
	env        []string
	volumeName string
	mountPoint string
	cpuLimit   string
	memLimit   string
}

func (d *DockerDriver) createContainer(ctx context.Context, name, networkName string, spec *containerSpec) (string, error) {
	memLimit, err := parseMemoryLimit(spec.memLimit)
	if err != nil {
		return "", err
	}

	cpuQuota, err := parseCPULimit(spec.cpuLimit)
	if err != nil {
		return "", err
	}

	cfg := &container.Config{
		Image: spec.image,
		Env:   spec.env,
		Labels: map[string]string{
			"mechanicbuddy.managed": "true",
		},
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   memLimit,
			CPUQuota: cpuQuota,
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if spec.volumeName != "" {
		hostCfg.Mounts = []mount.Mount{
			{
				Type:   mount.TypeVolume,
				Source: spec.volumeName,
				Target: spec.mountPoint,
			},
		}
	}

	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {},
		},
	}

	resp, err := d.client.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return "", err
	}

	for _, w := range resp.Warnings {
		log.Warn().Str("container", name).Msg("docker: " + w)
	}

	return resp.ID, nil
}

// Close closes the Docker client.
func (d *DockerDriver) Close() error {
	err := d.client.Close()
	if err != nil {
		return fmt.Errorf("infra.DockerDriver.Close: %w", err)
	}
	return nil
}

func namespaceName(slug string) string  { return "mb-tenant-" + slug }
func dataVolumeName(slug string) string { return "mb-data-" + slug }
func dbContainerName(slug string) string {
	return "mb-db-" + slug
}
func apiContainerName(slug string) string {
	return "mb-api-" + slug
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
