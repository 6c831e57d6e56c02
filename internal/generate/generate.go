package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edvin/clustermanifest/internal/groups"
	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/metrics"
	"github.com/edvin/clustermanifest/internal/topology"
)

// Generator runs the topology → manifests pipeline.
type Generator struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Rules   groups.Rules
	Builder manifest.Builder
	Format  manifest.Format
	// Sink receives the encoded manifests. Run fails without one.
	Sink manifest.Sink
}

// Result is the outcome of one generation run.
type Result struct {
	RunID    string
	Topology *topology.Topology
	Groups   groups.Groups
	Entries  []manifest.Entry
	// Written lists the artifact names stored, in topology order.
	Written []string
}

// Run loads the topology at path, builds every manifest and writes them to
// the sink. A partial write failure returns the result together with a
// *manifest.WriteError.
func (g *Generator) Run(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()

	return g.RunReader(ctx, f)
}

// RunReader is Run for an already opened topology document.
func (g *Generator) RunReader(ctx context.Context, r io.Reader) (res *Result, err error) {
	if g.Sink == nil {
		return nil, errors.New("generate: no output sink configured")
	}

	start := time.Now()
	defer func() { g.observe(start, err) }()

	res, err = g.Render(ctx, r)
	if err != nil {
		return nil, err
	}
	logger := g.Logger.With().Str("run_id", res.RunID).Logger()

	res.Written, err = manifest.WriteAll(ctx, g.Sink, res.Entries, g.format(), g.Builder.Concurrency)
	if g.Metrics != nil {
		g.Metrics.ManifestsWritten.Add(float64(len(res.Written)))
	}

	var werr *manifest.WriteError
	if errors.As(err, &werr) {
		if g.Metrics != nil {
			g.Metrics.WriteFailures.Add(float64(len(werr.Failures)))
		}
		for _, f := range werr.Failures {
			logger.Error().Err(f.Err).Str("host", f.Host).Str("file", f.File).Msg("manifest write failed")
		}
		logger.Warn().
			Int("written", len(res.Written)).
			Int("failed", len(werr.Failures)).
			Msg("generation finished with write failures")
		return res, err
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("written", len(res.Written)).
		Str("sink", fmt.Sprint(g.Sink)).
		Msg("manifests written")
	return res, nil
}

// Render loads, derives and builds without writing anything.
func (g *Generator) Render(ctx context.Context, r io.Reader) (*Result, error) {
	runID := uuid.New().String()
	logger := g.Logger.With().Str("run_id", runID).Logger()

	t, err := topology.Load(r)
	if err != nil {
		logger.Error().Err(err).Msg("topology rejected")
		return nil, err
	}
	if g.Metrics != nil {
		g.Metrics.TopologyNodes.Set(float64(len(t.Nodes)))
	}
	logger.Info().
		Int("nodes", len(t.Nodes)).
		Str("version", t.Version()).
		Msg("topology loaded")

	rules := g.Rules
	if rules == nil {
		rules = groups.DefaultRules()
	}
	grp := groups.Derive(t, rules)
	ev := logger.Debug()
	for _, name := range groups.AllGroups {
		ev = ev.Strs(string(name), grp.Get(name))
	}
	ev.Msg("groups derived")

	entries, err := g.Builder.Build(ctx, t, grp)
	if err != nil {
		return nil, fmt.Errorf("build manifests: %w", err)
	}
	if g.Metrics != nil {
		g.Metrics.ManifestsBuilt.Add(float64(len(entries)))
	}
	for _, e := range entries {
		logger.Debug().
			Str("host", e.Host).
			Strs("run_list", e.Manifest.RunList).
			Msg("manifest built")
	}

	return &Result{
		RunID:    runID,
		Topology: t,
		Groups:   grp,
		Entries:  entries,
	}, nil
}

func (g *Generator) format() manifest.Format {
	if g.Format == "" {
		return manifest.FormatJSON
	}
	return g.Format
}

func (g *Generator) observe(start time.Time, err error) {
	if g.Metrics == nil {
		return
	}
	g.Metrics.RunDuration.Observe(time.Since(start).Seconds())
	g.Metrics.Runs.WithLabelValues(Classify(err)).Inc()
	if err == nil {
		g.Metrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// Classify maps a run error to its metrics result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, topology.ErrMalformedTopology):
		return metrics.ResultMalformed
	case errors.Is(err, topology.ErrInvalidTopology):
		return metrics.ResultInvalid
	case errors.Is(err, manifest.ErrPartialWrite):
		return metrics.ResultPartialWrite
	default:
		return metrics.ResultError
	}
}
