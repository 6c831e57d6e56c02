package manifest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/clustermanifest/internal/groups"
	"github.com/edvin/clustermanifest/internal/topology"
)

// Builder assembles one manifest per node. Builds are pure: nothing is
// written anywhere until the entries are handed to WriteAll.
type Builder struct {
	// AttributeKey names the payload key in each document.
	AttributeKey string
	// Concurrency bounds parallel builds; values below 2 build sequentially.
	Concurrency int
}

// Build returns entries for every node of t, in topology order. g is shared
// by all manifests and must not be modified afterwards.
func (b Builder) Build(ctx context.Context, t *topology.Topology, g groups.Groups) ([]Entry, error) {
	roster := t.Identities()
	entries := make([]Entry, len(t.Nodes))

	if b.Concurrency < 2 {
		for i, n := range t.Nodes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e, err := b.entry(i, n, t.Version(), roster, g)
			if err != nil {
				return nil, err
			}
			entries[i] = e
		}
		return entries, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.Concurrency)
	for i, n := range t.Nodes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := b.entry(i, n, t.Version(), roster, g)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b Builder) entry(i int, n topology.Node, version string, roster []topology.Identity, g groups.Groups) (Entry, error) {
	if n.Host == "" {
		return Entry{}, topology.NewInvalidError(i, "", fmt.Sprintf("nodes[%d].host", i), "is required")
	}
	return Entry{
		Host: n.Host,
		Manifest: Manifest{
			RunList:      RoleRefs(n.Roles),
			AttributeKey: b.AttributeKey,
			Payload: Payload{
				Version: version,
				Node:    n.Identity(),
				Nodes:   roster,
				Groups:  g,
			},
		},
	}, nil
}
