package topology

// Topology is the declarative description of a cluster: the software version
// to install and the nodes that make up the cluster, in declaration order.
type Topology struct {
	Install Install `yaml:"install" json:"install"`
	Nodes   []Node  `yaml:"nodes" json:"nodes" jsonschema:"description=Cluster nodes in declaration order"`
}

// Install holds cluster-wide installation settings.
type Install struct {
	Version string `yaml:"version" json:"version" validate:"required" jsonschema:"required,description=Software version installed on every node"`
}

// Node describes one machine and the roles assigned to it.
type Node struct {
	Host  string   `yaml:"host" json:"host" validate:"required,hostname_rfc1123" jsonschema:"required,description=Short hostname; unique within the topology"`
	IP    string   `yaml:"ip" json:"ip" validate:"required,ip" jsonschema:"required,description=Network address"`
	FQDN  string   `yaml:"fqdn" json:"fqdn" validate:"required" jsonschema:"required,description=Fully qualified domain name"`
	Roles []string `yaml:"roles" json:"roles" validate:"dive,required" jsonschema:"description=Role tags in application order"`
}

// Identity is the network identity of a node. It deliberately carries no
// roles: manifests express role intent through the run list only.
type Identity struct {
	IP   string `yaml:"ip" json:"ip"`
	Host string `yaml:"host" json:"host"`
	FQDN string `yaml:"fqdn" json:"fqdn"`
}

// Version returns the install version shared by every node.
func (t *Topology) Version() string {
	return t.Install.Version
}

// Identity projects the node onto its network identity.
func (n Node) Identity() Identity {
	return Identity{IP: n.IP, Host: n.Host, FQDN: n.FQDN}
}

// Identities returns the identity of every node in topology order.
func (t *Topology) Identities() []Identity {
	ids := make([]Identity, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		ids = append(ids, n.Identity())
	}
	return ids
}

// Hosts returns every node's host in topology order.
func (t *Topology) Hosts() []string {
	hosts := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		hosts = append(hosts, n.Host)
	}
	return hosts
}

// IPs returns every node's address in topology order.
func (t *Topology) IPs() []string {
	ips := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		ips = append(ips, n.IP)
	}
	return ips
}

// Node looks up a node by host.
func (t *Topology) Node(host string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.Host == host {
			return n, true
		}
	}
	return Node{}, false
}
