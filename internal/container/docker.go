package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerOptions configures the Docker Engine adapter.
type DockerOptions struct {
	// Host is the daemon address, e.g. unix:///var/run/docker.sock. Empty
	// falls back to DOCKER_HOST.
	Host string
	// APIVersion pins the API version. Empty enables version negotiation.
	APIVersion string
}

// RuntimeInfo is a summary of the daemon, logged at start-up.
type RuntimeInfo struct {
	ServerVersion     string
	Driver            string
	OperatingSystem   string
	Containers        int
	ContainersRunning int
	Images            int
}

// DockerRuntime implements Runtime on top of the Docker Engine API.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime creates a client. It does not contact the daemon.
func NewDockerRuntime(opts DockerOptions) (*DockerRuntime, error) {
	clientOpts := []client.Opt{client.FromEnv}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	if opts.APIVersion != "" {
		clientOpts = append(clientOpts, client.WithVersion(opts.APIVersion))
	} else {
		clientOpts = append(clientOpts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Ping checks that the daemon answers.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// Info returns a summary of the daemon.
func (d *DockerRuntime) Info(ctx context.Context) (RuntimeInfo, error) {
	info, err := d.cli.Info(ctx)
	if err != nil {
		return RuntimeInfo{}, fmt.Errorf("failed to get docker info: %w", err)
	}
	return RuntimeInfo{
		ServerVersion:     info.ServerVersion,
		Driver:            info.Driver,
		OperatingSystem:   info.OperatingSystem,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		Images:            info.Images,
	}, nil
}

// Close releases the underlying transport.
func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

// ListAll returns every container known to the daemon, stopped ones included.
func (d *DockerRuntime) ListAll(ctx context.Context) ([]Entity, error) {
	list, err := d.cli.ContainerList(ctx, dockercontainer.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	entities := make([]Entity, 0, len(list))
	for _, c := range list {
		entities = append(entities, entityFromContainer(c))
	}
	return entities, nil
}

// FetchStats takes a single, non-streaming stats sample of one container.
func (d *DockerRuntime) FetchStats(ctx context.Context, id string) (*RawSnapshot, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var s types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoStats
		}
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return snapshotFromStats(&s), nil
}

func entityFromContainer(c types.Container) Entity {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return Entity{
		ID:     c.ID,
		Name:   name,
		Image:  c.Image,
		Status: c.State,
	}
}

func snapshotFromStats(s *types.StatsJSON) *RawSnapshot {
	online := uint64(s.CPUStats.OnlineCPUs)
	if online == 0 {
		online = uint64(len(s.CPUStats.CPUUsage.PercpuUsage))
	}

	raw := &RawSnapshot{
		CPUTotal:     s.CPUStats.CPUUsage.TotalUsage,
		PreCPUTotal:  s.PreCPUStats.CPUUsage.TotalUsage,
		SystemCPU:    s.CPUStats.SystemUsage,
		PreSystemCPU: s.PreCPUStats.SystemUsage,
		OnlineCPUs:   online,
		MemoryUsage:  s.MemoryStats.Usage,
		MemoryLimit:  s.MemoryStats.Limit,
		Pids:         s.PidsStats.Current,
	}

	ifaces := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		ifaces = append(ifaces, name)
	}
	sort.Strings(ifaces)
	for _, name := range ifaces {
		n := s.Networks[name]
		raw.Networks = append(raw.Networks, NetworkCounters{
			Interface: name,
			RxBytes:   n.RxBytes,
			TxBytes:   n.TxBytes,
		})
	}

	for _, e := range s.BlkioStats.IoServiceBytesRecursive {
		raw.BlockIO = append(raw.BlockIO, BlockIOEntry{Op: e.Op, Value: e.Value})
	}

	return raw
}
