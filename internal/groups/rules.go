package groups

import (
	"fmt"
	"slices"
	"strings"
)

// Group names a cluster-wide address group.
type Group string

const (
	GroupAll          Group = "all"
	GroupControlPlane Group = "control_plane"
	GroupCoordination Group = "coordination"
	GroupScheduler    Group = "scheduler"
	GroupWorker       Group = "worker"
)

// AllGroups in serialization order.
var AllGroups = []Group{
	GroupAll,
	GroupControlPlane,
	GroupCoordination,
	GroupScheduler,
	GroupWorker,
}

// Role tags with a grouping rule in DefaultRules.
const (
	RoleControlNode         = "control-node"
	RoleMetadataService     = "metadata-service"
	RoleCoordinationService = "coordination-service"
	RoleScheduleService     = "schedule-service"
	RoleWorkerNode          = "worker-node"
	RoleDataNode            = "data-node"
)

// Rules maps a role tag to the groups a node holding it joins. Aggregate
// roles simply list several groups. Roles without an entry join no group
// beyond "all".
type Rules map[string][]Group

// DefaultRules returns the standard role table.
func DefaultRules() Rules {
	return Rules{
		RoleControlNode:         {GroupControlPlane, GroupCoordination, GroupScheduler},
		RoleMetadataService:     {GroupControlPlane},
		RoleCoordinationService: {GroupCoordination},
		RoleScheduleService:     {GroupScheduler},
		RoleWorkerNode:          {GroupWorker},
		RoleDataNode:            {GroupWorker},
	}
}

// Merge returns a new table with other's entries added to r. Groups for a
// role present in both are unioned.
func (r Rules) Merge(other Rules) Rules {
	out := make(Rules, len(r)+len(other))
	for role, gs := range r {
		out[role] = slices.Clone(gs)
	}
	for role, gs := range other {
		for _, g := range gs {
			if !slices.Contains(out[role], g) {
				out[role] = append(out[role], g)
			}
		}
	}
	return out
}

// Validate rejects rules that reference an unknown group.
func (r Rules) Validate() error {
	for role, gs := range r {
		for _, g := range gs {
			if !slices.Contains(AllGroups, g) {
				return fmt.Errorf("role %q: unknown group %q", role, g)
			}
		}
	}
	return nil
}

// Groups returns the groups role contributes to.
func (r Rules) Groups(role string) []Group {
	return r[role]
}

// ParseRule parses "role=group[+group...]", e.g. "edge-node=coordination+worker".
func ParseRule(spec string) (string, []Group, error) {
	role, list, ok := strings.Cut(strings.TrimSpace(spec), "=")
	role = strings.TrimSpace(role)
	if !ok || role == "" || strings.TrimSpace(list) == "" {
		return "", nil, fmt.Errorf("role rule %q: want role=group[+group...]", spec)
	}
	var gs []Group
	for _, name := range strings.Split(list, "+") {
		gs = append(gs, Group(strings.TrimSpace(name)))
	}
	return role, gs, nil
}

// ParseRules builds a validated table from rule specs. A role given twice
// joins the union of its groups.
func ParseRules(specs []string) (Rules, error) {
	r := Rules{}
	for _, spec := range specs {
		role, gs, err := ParseRule(spec)
		if err != nil {
			return nil, err
		}
		r = r.Merge(Rules{role: gs})
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
