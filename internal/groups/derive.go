package groups

import "github.com/edvin/clustermanifest/internal/topology"

// Groups holds the cluster-wide address groups derived from a topology.
// It is computed once per run and treated as read-only afterwards.
type Groups struct {
	All          AddrSet `json:"all" yaml:"all"`
	ControlPlane AddrSet `json:"control_plane" yaml:"control_plane"`
	Coordination AddrSet `json:"coordination" yaml:"coordination"`
	Scheduler    AddrSet `json:"scheduler" yaml:"scheduler"`
	Worker       AddrSet `json:"worker" yaml:"worker"`
}

// Derive computes the groups for t using rules. Every node joins "all";
// other memberships come from the rule table. Unrecognised roles are
// ignored here so new configuration content can introduce roles without
// the topology being rejected.
func Derive(t *topology.Topology, rules Rules) Groups {
	var g Groups
	for _, n := range t.Nodes {
		g.All.Add(n.IP)
		for _, role := range n.Roles {
			for _, name := range rules.Groups(role) {
				if set := g.set(name); set != nil {
					set.Add(n.IP)
				}
			}
		}
	}
	return g
}

// Get returns the members of the named group, or nil for an unknown name.
func (g Groups) Get(name Group) []string {
	set := g.set(name)
	if set == nil {
		return nil
	}
	return set.Members()
}

func (g *Groups) set(name Group) *AddrSet {
	switch name {
	case GroupAll:
		return &g.All
	case GroupControlPlane:
		return &g.ControlPlane
	case GroupCoordination:
		return &g.Coordination
	case GroupScheduler:
		return &g.Scheduler
	case GroupWorker:
		return &g.Worker
	}
	return nil
}
