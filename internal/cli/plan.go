package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/edvin/clustermanifest/internal/deploy"
)

func newPlanCmd() *cobra.Command {
	var (
		file   string
		opts   deploy.Options
		output string
	)

	cmd := &cobra.Command{
		Use:   "plan -f TOPOLOGY",
		Short: "Show the per-node deployment steps for the generated manifests",
		Long: `Plan prints, for every node in topology order, the uploads and commands that
place its manifest and configuration bundle on the node and run the
configuration agent. Nothing is executed.

--override replaces the run list for the agent run, e.g. a configure-only
pass after installation. --skip-bootstrap keeps only the agent run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, file, opts, output)
		},
	}

	addTopologyFlag(cmd, &file)
	addGenerationFlags(cmd)
	addDeployFlags(cmd)

	f := cmd.Flags()
	f.StringSliceVar(&opts.OverrideRunList, "override", nil, "roles to run instead of the manifest's run list")
	f.BoolVar(&opts.SkipBootstrap, "skip-bootstrap", false, "omit directory setup and uploads")
	f.StringVar(&output, "output", "text", "output format (text or json)")

	return cmd
}

func addDeployFlags(cmd *cobra.Command) {
	def := deploy.DefaultConfig()
	f := cmd.Flags()
	f.String("deploy-user", def.User, "user owning the install directory on the nodes")
	f.String("install-dir", def.InstallDir, "remote directory receiving the manifest")
	f.String("chef-dir", "", "remote directory receiving the bundle (default <install-dir>/chef)")
	f.String("bundle-dir", def.BundleDir, "local directory holding cookbooks/, roles/ and solo.rb")
	f.StringP("output-dir", "o", ".", "local directory the manifests were generated into")
	f.String("repo-url", def.RepoURL, "package repository base URL")
	f.String("platform", def.Platform, "package platform")
	f.String("package", def.Package, "package distribution name")
}

func runPlan(cmd *cobra.Command, file string, opts deploy.Options, output string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg, logger, nil)
	if err != nil {
		return err
	}

	r, err := openTopology(cmd, file)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := gen.Render(cmd.Context(), r)
	if err != nil {
		return err
	}

	dcfg := deployConfig(cfg)
	plans := deploy.Plan(dcfg, res.Topology, res.Entries, gen.Format, opts)
	packages := deploy.PackageURLs(dcfg, res.Topology.Version())

	out := cmd.OutOrStdout()
	switch output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"packages": packages,
			"nodes":    plans,
		})
	case "text":
		printPlan(out, packages, plans)
		return nil
	default:
		return fmt.Errorf("unknown output %q", output)
	}
}

func printPlan(w io.Writer, packages []string, plans []deploy.NodePlan) {
	fmt.Fprintln(w, "packages:")
	for _, p := range packages {
		fmt.Fprintf(w, "  %s\n", p)
	}
	for _, p := range plans {
		fmt.Fprintf(w, "\n%s (%s)\n", p.Host, p.Address)
		for i, s := range p.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}
