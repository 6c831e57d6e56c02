package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "manifestgen"

// Run results recorded on manifestgen_runs_total.
const (
	ResultSuccess      = "success"
	ResultMalformed    = "malformed"
	ResultInvalid      = "invalid"
	ResultPartialWrite = "partial_write"
	ResultError        = "error"
)

var results = []string{ResultSuccess, ResultMalformed, ResultInvalid, ResultPartialWrite, ResultError}

// Metrics holds the collectors recorded by generation runs.
type Metrics struct {
	Registry *prometheus.Registry

	Runs              *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	TopologyNodes     prometheus.Gauge
	ManifestsBuilt    prometheus.Counter
	ManifestsWritten  prometheus.Counter
	WriteFailures     prometheus.Counter
	LastSuccessfulRun prometheus.Gauge
}

// New registers the generation collectors on a fresh registry. withRuntime
// adds Go and process collectors, which long-running servers want and
// one-shot textfile exports do not.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Generation runs by result",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of generation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TopologyNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_nodes",
			Help:      "Number of nodes in the last loaded topology",
		}),
		ManifestsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifests_built_total",
			Help:      "Number of node manifests built",
		}),
		ManifestsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifests_written_total",
			Help:      "Number of node manifests stored successfully",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_write_failures_total",
			Help:      "Number of node manifests that could not be stored",
		}),
		LastSuccessfulRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful run",
		}),
	}

	reg.MustRegister(
		m.Runs,
		m.RunDuration,
		m.TopologyNodes,
		m.ManifestsBuilt,
		m.ManifestsWritten,
		m.WriteFailures,
		m.LastSuccessfulRun,
	)
	for _, r := range results {
		m.Runs.WithLabelValues(r)
	}
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// WriteTextfile writes the registry in Prometheus text format to path, for
// node_exporter's textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
