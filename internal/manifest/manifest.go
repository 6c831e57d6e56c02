package manifest

import (
	"encoding/json"

	"github.com/edvin/clustermanifest/internal/groups"
	"github.com/edvin/clustermanifest/internal/topology"
)

// DefaultAttributeKey is the document key the payload is stored under.
const DefaultAttributeKey = "cluster"

// RunListKey is the document key of the node's run list.
const RunListKey = "run_list"

// Manifest is the document a node-local configuration agent consumes: the
// roles to apply plus the cluster context they need.
type Manifest struct {
	RunList      []string
	AttributeKey string
	Payload      Payload
}

// Payload is the attribute data carried by a manifest.
type Payload struct {
	Version string              `json:"version" yaml:"version"`
	Node    topology.Identity   `json:"node" yaml:"node"`
	Nodes   []topology.Identity `json:"nodes" yaml:"nodes"`
	Groups  groups.Groups       `json:"groups" yaml:"groups"`
}

// Entry pairs a manifest with the host it targets.
type Entry struct {
	Host     string
	Manifest Manifest
}

// Key identifies the entry's artifact independently of format.
func (e Entry) Key() string {
	return e.Host + "_manifest"
}

// RoleRef formats role as a run list reference.
func RoleRef(role string) string {
	return "role[" + role + "]"
}

// RoleRefs formats every role as a run list reference, keeping order and
// duplicates.
func RoleRefs(roles []string) []string {
	refs := make([]string, 0, len(roles))
	for _, r := range roles {
		refs = append(refs, RoleRef(r))
	}
	return refs
}

func (m Manifest) document() map[string]any {
	key := m.AttributeKey
	if key == "" {
		key = DefaultAttributeKey
	}
	runList := m.RunList
	if runList == nil {
		runList = []string{}
	}
	return map[string]any{
		RunListKey: runList,
		key:        m.Payload,
	}
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.document())
}

func (m Manifest) MarshalYAML() (any, error) {
	return m.document(), nil
}
