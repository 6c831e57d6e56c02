package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/metrics"
)

func newGenerateCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "generate -f TOPOLOGY",
		Short: "Write one manifest per node",
		Long: `Generate loads the topology, derives the role groups and writes
<host>_manifest.<format> for every node, to --output-dir or, when --s3-bucket
is set, to an S3-compatible bucket.

A node whose manifest cannot be written does not stop the others; the command
exits non-zero and names every failed host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, file, dryRun)
		},
	}

	addTopologyFlag(cmd, &file)
	addGenerationFlags(cmd)

	f := cmd.Flags()
	f.StringP("output-dir", "o", ".", "directory receiving the manifests")
	f.BoolVar(&dryRun, "dry-run", false, "print the manifests to stdout instead of writing them")
	f.String("metrics-textfile", "", "write run metrics to this file in Prometheus text format")
	f.String("s3-bucket", "", "store manifests in this bucket instead of --output-dir")
	f.String("s3-prefix", "", "object key prefix inside the bucket")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL (default AWS)")
	f.String("s3-region", "us-east-1", "bucket region")
	f.String("s3-access-key", "", "S3 access key")
	f.String("s3-secret-key", "", "S3 secret key")

	return cmd
}

func runGenerate(cmd *cobra.Command, file string, dryRun bool) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	m := metrics.New(false)
	gen, err := newGenerator(cfg, logger, m)
	if err != nil {
		return err
	}

	r, err := openTopology(cmd, file)
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if dryRun {
		res, err := gen.Render(ctx, r)
		if err != nil {
			return err
		}
		for _, e := range res.Entries {
			data, err := manifest.Encode(e.Manifest, gen.Format)
			if err != nil {
				return fmt.Errorf("encode %s: %w", e.Host, err)
			}
			if gen.Format == manifest.FormatYAML {
				if _, err := fmt.Fprintf(out, "---\n# %s\n", manifest.Filename(e.Host, gen.Format)); err != nil {
					return fmt.Errorf("write dry run: %w", err)
				}
			}
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("write dry run: %w", err)
			}
		}
		return nil
	}

	gen.Sink, err = newSink(cfg)
	if err != nil {
		return err
	}

	res, runErr := gen.RunReader(ctx, r)

	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("metrics not exported")
		}
	}

	if res != nil {
		for _, name := range res.Written {
			fmt.Fprintln(out, name)
		}
	}

	var werr *manifest.WriteError
	if errors.As(runErr, &werr) {
		return fmt.Errorf("%d of %d manifests not written, failed hosts: %s: %w",
			len(werr.Failures), len(res.Entries), strings.Join(werr.Hosts(), ", "), runErr)
	}
	return runErr
}
