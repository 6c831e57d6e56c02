// Package deploy describes how generated manifests reach their nodes: which
// files are uploaded where and which agent command runs them. Transport and
// remote execution are supplied by the caller.
package deploy

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/topology"
)

// Config holds the deployment driver settings.
type Config struct {
	// User owns InstallDir on the target nodes.
	User string
	// InstallDir receives the node's manifest.
	InstallDir string
	// ChefDir receives the configuration bundle; defaults to <InstallDir>/chef.
	ChefDir string
	// BundleDir is the local directory holding cookbooks/, roles/ and solo.rb.
	BundleDir string
	// SourceDir is the local directory the manifests were generated into.
	// Empty means the working directory.
	SourceDir string
	// RepoURL is the package repository base URL.
	RepoURL string
	// Platform selects the package flavour, e.g. "redhat".
	Platform string
	// Package is the distribution name used in archive file names.
	Package string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		User:       "root",
		InstallDir: "/opt/install_cluster",
		BundleDir:  "chef",
		RepoURL:    "http://package.mapr.com/releases",
		Platform:   "redhat",
		Package:    "mapr",
	}
}

func (c Config) chefDir() string {
	if c.ChefDir != "" {
		return c.ChefDir
	}
	return path.Join(c.InstallDir, "chef")
}

// StepKind distinguishes file uploads from commands.
type StepKind string

const (
	StepUpload StepKind = "upload"
	StepExec   StepKind = "exec"
)

// Step is one action against a node.
type Step struct {
	Kind        StepKind `json:"kind"`
	Description string   `json:"description"`
	Source      string   `json:"source,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Command     []string `json:"command,omitempty"`
	Sudo        bool     `json:"sudo,omitempty"`
}

func (s Step) String() string {
	switch s.Kind {
	case StepUpload:
		return fmt.Sprintf("put %s -> %s", s.Source, s.Destination)
	default:
		cmd := strings.Join(s.Command, " ")
		if s.Sudo {
			cmd = "sudo " + cmd
		}
		return cmd
	}
}

// NodePlan is the ordered list of steps for one node.
type NodePlan struct {
	Host    string `json:"host"`
	Address string `json:"address"`
	Steps   []Step `json:"steps"`
}

// Options adjusts the generated plan.
type Options struct {
	// OverrideRunList replaces the manifest's run list for this agent run,
	// e.g. a configure-only pass after installation.
	OverrideRunList []string
	// SkipBootstrap omits directory setup and uploads, leaving only the
	// agent run.
	SkipBootstrap bool
}

// Transport places a local file onto a target node.
type Transport interface {
	Upload(ctx context.Context, target, src, dst string) error
}

// Executor runs a command on a target node.
type Executor interface {
	Run(ctx context.Context, target string, argv []string, sudo bool) error
}

// Plan returns one NodePlan per manifest entry, in entry order. Manifests
// are expected under their Filename in cfg.SourceDir.
func Plan(cfg Config, t *topology.Topology, entries []manifest.Entry, f manifest.Format, opts Options) []NodePlan {
	chefDir := cfg.chefDir()
	plans := make([]NodePlan, 0, len(entries))

	for _, e := range entries {
		file := manifest.Filename(e.Host, f)
		addr := e.Host
		if n, ok := t.Node(e.Host); ok && n.IP != "" {
			addr = n.IP
		}

		var steps []Step
		if !opts.SkipBootstrap {
			steps = append(steps,
				Step{
					Kind:        StepExec,
					Description: "create install directory",
					Command:     []string{"mkdir", "-p", chefDir},
					Sudo:        true,
				},
				Step{
					Kind:        StepExec,
					Description: "hand install directory to deploy user",
					Command:     []string{"chown", "-R", cfg.User + ":" + cfg.User, cfg.InstallDir},
					Sudo:        true,
				},
				Step{
					Kind:        StepUpload,
					Description: "upload manifest",
					Source:      filepath.Join(cfg.SourceDir, file),
					Destination: cfg.InstallDir,
				},
			)
			for _, item := range []string{"cookbooks", "roles", "solo.rb"} {
				steps = append(steps, Step{
					Kind:        StepUpload,
					Description: "upload " + item,
					Source:      path.Join(cfg.BundleDir, item),
					Destination: chefDir,
				})
			}
		}
		steps = append(steps, AgentStep(cfg, file, opts.OverrideRunList))

		plans = append(plans, NodePlan{Host: e.Host, Address: addr, Steps: steps})
	}
	return plans
}

// AgentStep returns the configuration agent invocation for manifestFile.
// Roles in override are converted to run list references.
func AgentStep(cfg Config, manifestFile string, override []string) Step {
	chefDir := cfg.chefDir()
	argv := []string{
		"chef-solo",
		"-c", path.Join(chefDir, "solo.rb"),
		"-j", path.Join(cfg.InstallDir, manifestFile),
	}
	desc := "run configuration agent"
	if len(override) > 0 {
		argv = append(argv, "-o", strings.Join(manifest.RoleRefs(override), ","))
		desc = "run configuration agent with override run list"
	}
	return Step{
		Kind:        StepExec,
		Description: desc,
		Command:     argv,
		Sudo:        true,
	}
}

// Apply executes the plan's steps in order through the given collaborators
// and stops at the first failure. Other nodes' plans are unaffected.
func (p NodePlan) Apply(ctx context.Context, tr Transport, ex Executor) error {
	for i, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch s.Kind {
		case StepUpload:
			err = tr.Upload(ctx, p.Address, s.Source, s.Destination)
		case StepExec:
			err = ex.Run(ctx, p.Address, s.Command, s.Sudo)
		default:
			err = fmt.Errorf("unknown step kind %q", s.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s step %d (%s): %w", p.Host, i+1, s.Description, err)
		}
	}
	return nil
}

// PackageURLs returns the core package archive and the ecosystem
// repository URL for version.
func PackageURLs(cfg Config, version string) []string {
	base := strings.TrimRight(cfg.RepoURL, "/")
	return []string{
		fmt.Sprintf("%s/v%s/%s/%s-v%sGA.rpm.tgz", base, version, cfg.Platform, cfg.Package, version),
		fmt.Sprintf("%s/ecosystem/%s/", base, cfg.Platform),
	}
}
