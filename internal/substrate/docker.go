// Package substrate inspects the local Docker substrate backing test
// environments. The destroy-environment stage uses it to verify that
// tearing down a controller left no orphaned containers behind.
package substrate

import (
	"context"
	"fmt"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/filters"
	"github.com/moby/moby/client"
)

// EnvLabel marks containers owned by a crucible-managed environment. The
// value is the environment (controller) name.
const EnvLabel = "crucible.env"

type dockerAPI interface {
	ContainerList(ctx context.Context, options client.ContainerListOptions) ([]container.Summary, error)
	ContainerRemove(ctx context.Context, containerID string, options client.ContainerRemoveOptions) error
	Close() error
}

// Provider checks for and cleans up leaked substrate resources.
type Provider struct {
	api dockerAPI
}

// New connects to the local Docker daemon from the environment, the same
// way the trial containers were created.
func New() (*Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Provider{api: cli}, nil
}

// Leaked returns the ids of containers still labeled for env, including
// stopped ones.
func (p *Provider) Leaked(ctx context.Context, env string) ([]string, error) {
	summaries, err := p.api.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", EnvLabel+"="+env)),
	})
	if err != nil {
		return nil, fmt.Errorf("listing substrate containers: %w", err)
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Remove force-removes the given containers. Used after a leak is detected
// so the next trial starts from a clean substrate.
func (p *Provider) Remove(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := p.api.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("removing container %s: %w", id, err)
		}
	}
	return nil
}

func (p *Provider) Close() error {
	return p.api.Close()
}
