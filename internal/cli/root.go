// Package cli implements the manifestgen command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edvin/clustermanifest/internal/config"
	"github.com/edvin/clustermanifest/internal/deploy"
	"github.com/edvin/clustermanifest/internal/generate"
	"github.com/edvin/clustermanifest/internal/groups"
	"github.com/edvin/clustermanifest/internal/logging"
	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/metrics"
)

// NewRootCmd builds the manifestgen command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "manifestgen",
		Short: "Generate per-node configuration manifests from a cluster topology",
		Long: `manifestgen reads a cluster topology (YAML or JSON), derives the cluster-wide
role groups and writes one configuration manifest per node, named
<host>_manifest.json, for a configuration-management agent to consume.

Every flag can also be set through a MANIFESTGEN_* environment variable,
e.g. --output-dir as MANIFESTGEN_OUTPUT_DIR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json or console)")

	root.AddCommand(
		newGenerateCmd(),
		newGroupsCmd(),
		newValidateCmd(),
		newPlanCmd(),
		newSchemaCmd(),
		newServeCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// setup resolves the configuration for cmd and builds its logger.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), cfg).
		With().Str("command", cmd.Name()).Logger()
	return cfg, logger, nil
}

func newGenerator(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*generate.Generator, error) {
	format, err := manifest.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	rules := groups.DefaultRules()
	if len(cfg.Roles) > 0 {
		extra, err := groups.ParseRules(cfg.Roles)
		if err != nil {
			return nil, err
		}
		rules = rules.Merge(extra)
	}
	return &generate.Generator{
		Logger:  logger,
		Metrics: m,
		Rules:   rules,
		Builder: manifest.Builder{
			AttributeKey: cfg.AttributeKey,
			Concurrency:  cfg.Concurrency,
		},
		Format: format,
	}, nil
}

func newSink(cfg *config.Config) (manifest.Sink, error) {
	if cfg.S3Bucket == "" {
		return manifest.DirSink{Dir: cfg.OutputDir}, nil
	}
	return manifest.NewS3Sink(manifest.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		Prefix:    cfg.S3Prefix,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
}

func deployConfig(cfg *config.Config) deploy.Config {
	return deploy.Config{
		User:       cfg.DeployUser,
		InstallDir: cfg.InstallDir,
		ChefDir:    cfg.ChefDir,
		BundleDir:  cfg.BundleDir,
		SourceDir:  cfg.OutputDir,
		RepoURL:    cfg.RepoURL,
		Platform:   cfg.Platform,
		Package:    cfg.Package,
	}
}

// openTopology opens path, or the command's stdin for "-".
func openTopology(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	return f, nil
}

func addTopologyFlag(cmd *cobra.Command, file *string) {
	cmd.Flags().StringVarP(file, "file", "f", "", "topology file (YAML or JSON), - for stdin")
	_ = cmd.MarkFlagRequired("file")
}

func addGenerationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("format", "json", "manifest format (json or yaml)")
	f.String("attribute-key", manifest.DefaultAttributeKey, "top-level key holding the cluster attributes")
	f.Int("concurrency", 1, "nodes built and written in parallel")
	addRoleFlag(cmd)
}

func addRoleFlag(cmd *cobra.Command) {
	cmd.Flags().StringSlice("role", nil, "extra grouping rule role=group[+group...], repeatable")
}
