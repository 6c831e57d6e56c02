package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/clustermanifest/internal/groups"
	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/topology"
)

func fixture(t *testing.T) (*topology.Topology, []manifest.Entry) {
	t.Helper()
	topo := &topology.Topology{
		Install: topology.Install{Version: "3.0.1"},
		Nodes: []topology.Node{
			{Host: "n1", IP: "10.0.0.1", FQDN: "n1.local", Roles: []string{"control-node"}},
			{Host: "n2", IP: "10.0.0.2", FQDN: "n2.local", Roles: []string{"data-node"}},
		},
	}
	entries, err := manifest.Builder{}.Build(context.Background(), topo, groups.Derive(topo, groups.DefaultRules()))
	require.NoError(t, err)
	return topo, entries
}

type recorder struct {
	calls  []string
	failAt int
}

func (r *recorder) record(s string) error {
	r.calls = append(r.calls, s)
	if r.failAt > 0 && len(r.calls) == r.failAt {
		return errors.New("ssh: connection refused")
	}
	return nil
}

func (r *recorder) Upload(_ context.Context, target, src, dst string) error {
	return r.record("upload " + target + " " + src + " " + dst)
}

func (r *recorder) Run(_ context.Context, target string, argv []string, sudo bool) error {
	s := "run " + target
	if sudo {
		s += " sudo"
	}
	for _, a := range argv {
		s += " " + a
	}
	return r.record(s)
}

func TestPlan_FullBootstrap(t *testing.T) {
	topo, entries := fixture(t)
	plans := Plan(DefaultConfig(), topo, entries, manifest.FormatJSON, Options{})

	require.Len(t, plans, 2)
	assert.Equal(t, "n1", plans[0].Host)
	assert.Equal(t, "10.0.0.1", plans[0].Address)

	var rendered []string
	for _, s := range plans[0].Steps {
		rendered = append(rendered, s.String())
	}
	assert.Equal(t, []string{
		"sudo mkdir -p /opt/install_cluster/chef",
		"sudo chown -R root:root /opt/install_cluster",
		"put n1_manifest.json -> /opt/install_cluster",
		"put chef/cookbooks -> /opt/install_cluster/chef",
		"put chef/roles -> /opt/install_cluster/chef",
		"put chef/solo.rb -> /opt/install_cluster/chef",
		"sudo chef-solo -c /opt/install_cluster/chef/solo.rb -j /opt/install_cluster/n1_manifest.json",
	}, rendered)
}

func TestPlan_ManifestSourceDir(t *testing.T) {
	topo, entries := fixture(t)
	cfg := DefaultConfig()
	cfg.SourceDir = "/tmp/out"

	plans := Plan(cfg, topo, entries, manifest.FormatJSON, Options{})

	upload := plans[1].Steps[2]
	require.Equal(t, StepUpload, upload.Kind)
	assert.Equal(t, "/tmp/out/n2_manifest.json", upload.Source)
	assert.Equal(t, "/opt/install_cluster/n2_manifest.json", plans[1].Steps[len(plans[1].Steps)-1].Command[4])
}

func TestPlan_ConfigureOnlyPass(t *testing.T) {
	topo, entries := fixture(t)
	cfg := DefaultConfig()
	cfg.ChefDir = "/etc/chef"

	plans := Plan(cfg, topo, entries, manifest.FormatYAML, Options{
		SkipBootstrap:   true,
		OverrideRunList: []string{"base", "configure"},
	})

	require.Len(t, plans[1].Steps, 1)
	assert.Equal(t, []string{
		"chef-solo",
		"-c", "/etc/chef/solo.rb",
		"-j", "/opt/install_cluster/n2_manifest.yaml",
		"-o", "role[base],role[configure]",
	}, plans[1].Steps[0].Command)
}

func TestApply_RunsStepsInOrder(t *testing.T) {
	topo, entries := fixture(t)
	plans := Plan(DefaultConfig(), topo, entries, manifest.FormatJSON, Options{})

	rec := &recorder{}
	require.NoError(t, plans[1].Apply(context.Background(), rec, rec))

	require.Len(t, rec.calls, len(plans[1].Steps))
	assert.Equal(t, "run 10.0.0.2 sudo mkdir -p /opt/install_cluster/chef", rec.calls[0])
	assert.Equal(t, "upload 10.0.0.2 n2_manifest.json /opt/install_cluster", rec.calls[2])
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	topo, entries := fixture(t)
	plans := Plan(DefaultConfig(), topo, entries, manifest.FormatJSON, Options{})

	rec := &recorder{failAt: 3}
	err := plans[0].Apply(context.Background(), rec, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n1 step 3 (upload manifest)")
	assert.Len(t, rec.calls, 3)
}

func TestPackageURLs(t *testing.T) {
	urls := PackageURLs(DefaultConfig(), "3.0.1")
	assert.Equal(t, []string{
		"http://package.mapr.com/releases/v3.0.1/redhat/mapr-v3.0.1GA.rpm.tgz",
		"http://package.mapr.com/releases/ecosystem/redhat/",
	}, urls)
}
