package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clusterYAML = `
install:
  version: "3.0.1"
nodes:
  - host: n1
    ip: 10.0.0.1
    fqdn: n1.local
    roles: [control-node]
  - host: n2
    ip: 10.0.0.2
    fqdn: n2.local
    roles: [data-node, worker-node]
`

func writeTopology(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestGenerate_WritesManifests(t *testing.T) {
	topo := writeTopology(t, clusterYAML)
	dir := t.TempDir()

	out, logs, err := run(t, "", "generate", "-f", topo, "-o", dir)
	require.NoError(t, err, logs)

	assert.Equal(t, "n1_manifest.json\nn2_manifest.json\n", out)
	data, err := os.ReadFile(filepath.Join(dir, "n2_manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role[data-node]"`)
	assert.Contains(t, logs, "manifests written")
}

func TestGenerate_YAMLAndAttributeKey(t *testing.T) {
	topo := writeTopology(t, clusterYAML)
	dir := t.TempDir()

	_, logs, err := run(t, "", "generate", "-f", topo, "-o", dir, "--format", "yaml", "--attribute-key", "mapr", "--concurrency", "2")
	require.NoError(t, err, logs)

	data, err := os.ReadFile(filepath.Join(dir, "n1_manifest.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mapr:")
	assert.Contains(t, string(data), "run_list:")
}

func TestGenerate_DryRunFromStdin(t *testing.T) {
	dir := t.TempDir()

	out, logs, err := run(t, clusterYAML, "generate", "-f", "-", "-o", dir, "--dry-run", "--format", "yaml")
	require.NoError(t, err, logs)

	assert.Contains(t, out, "# n1_manifest.yaml")
	assert.Contains(t, out, "# n2_manifest.yaml")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type brokenPipe struct{}

func (brokenPipe) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestGenerate_DryRunReportsOutputError(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"generate", "-f", writeTopology(t, clusterYAML), "--dry-run"})
	cmd.SetOut(brokenPipe{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestGenerate_WriteFailureNamesHosts(t *testing.T) {
	topo := writeTopology(t, clusterYAML)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, _, err := run(t, "", "generate", "-f", topo, "-o", blocker)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 manifests not written")
	assert.Contains(t, err.Error(), "failed hosts: n1, n2")
}

func TestGenerate_MetricsTextfile(t *testing.T) {
	topo := writeTopology(t, clusterYAML)
	prom := filepath.Join(t.TempDir(), "manifestgen.prom")

	_, logs, err := run(t, "", "generate", "-f", topo, "-o", t.TempDir(), "--metrics-textfile", prom)
	require.NoError(t, err, logs)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `manifestgen_runs_total{result="success"} 1`)
	assert.Contains(t, string(data), "manifestgen_manifests_written_total 2")
}

func TestGenerate_RequiresFile(t *testing.T) {
	_, _, err := run(t, "", "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"file"`)
}

func TestGenerate_RejectsUnknownFormat(t *testing.T) {
	topo := writeTopology(t, clusterYAML)
	_, _, err := run(t, "", "generate", "-f", topo, "--format", "xml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "", "validate", "-f", writeTopology(t, clusterYAML))
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 node(s), version 3.0.1\n", out)
}

func TestValidate_ListsProblems(t *testing.T) {
	body := `
install: {}
nodes:
  - {host: n1, ip: 10.0.0.1, fqdn: n1.local}
  - {host: n1, ip: not-an-ip, fqdn: n1b.local}
`
	out, _, err := run(t, "", "validate", "-f", writeTopology(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topology")

	assert.Contains(t, out, "install.version")
	assert.Contains(t, out, "nodes[1].ip")
	assert.Contains(t, out, "duplicate host")
}

func TestValidate_Malformed(t *testing.T) {
	_, _, err := run(t, "", "validate", "-f", writeTopology(t, "nodes: ["))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed topology")
}

func TestGroups(t *testing.T) {
	out, _, err := run(t, "", "groups", "-f", writeTopology(t, clusterYAML), "--output", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "control_plane:\n  - 10.0.0.1\n")
	assert.Contains(t, out, "worker:\n  - 10.0.0.2\n")
}

func TestPlan_Text(t *testing.T) {
	out, _, err := run(t, "", "plan", "-f", writeTopology(t, clusterYAML), "--install-dir", "/srv/install")
	require.NoError(t, err)

	assert.Contains(t, out, "http://package.mapr.com/releases/v3.0.1/redhat/mapr-v3.0.1GA.rpm.tgz")
	assert.Contains(t, out, "n1 (10.0.0.1)")
	assert.Contains(t, out, "sudo chef-solo -c /srv/install/chef/solo.rb -j /srv/install/n1_manifest.json")
	assert.Less(t, strings.Index(out, "n1 (10.0.0.1)"), strings.Index(out, "n2 (10.0.0.2)"))
}

func TestPlan_OverrideSkipBootstrap(t *testing.T) {
	out, _, err := run(t, "", "plan", "-f", writeTopology(t, clusterYAML),
		"--skip-bootstrap", "--override", "configure,start", "--output", "json")
	require.NoError(t, err)

	assert.Contains(t, out, `"role[configure],role[start]"`)
	assert.NotContains(t, out, `"upload"`)
}

func TestSchema(t *testing.T) {
	out, _, err := run(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"Cluster topology"`)
	assert.Contains(t, out, `"nodes"`)
}

func TestGroups_ExtraRoleRule(t *testing.T) {
	body := `
install: {version: "1"}
nodes:
  - {host: e1, ip: 10.0.0.9, fqdn: e1.local, roles: [edge-node]}
`
	out, _, err := run(t, "", "groups", "-f", writeTopology(t, body), "--role", "edge-node=coordination+worker")
	require.NoError(t, err)

	assert.Contains(t, out, `"coordination": [
    "10.0.0.9"
  ]`)
	assert.Contains(t, out, `"control_plane": []`)
}

func TestGroups_BadRoleRule(t *testing.T) {
	_, _, err := run(t, "", "groups", "-f", writeTopology(t, clusterYAML), "--role", "edge-node=nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown group "nope"`)
}

func TestPlan_UsesOutputDir(t *testing.T) {
	out, _, err := run(t, "", "plan", "-f", writeTopology(t, clusterYAML), "-o", "/tmp/manifests")
	require.NoError(t, err)
	assert.Contains(t, out, "put /tmp/manifests/n1_manifest.json -> /opt/install_cluster")
}
