package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	m := New(false)
	m.Runs.WithLabelValues("success").Inc()
	m.ManifestsWritten.Add(3)
	m.TopologyNodes.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ManifestsWritten))

	n, err := testutil.GatherAndCount(m.Registry, "manifestgen_topology_nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteTextfile(t *testing.T) {
	m := New(false)
	m.ManifestsBuilt.Add(2)

	path := filepath.Join(t.TempDir(), "manifestgen.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "manifestgen_manifests_built_total 2")
}

func TestNewServer(t *testing.T) {
	m := New(true)
	srv := NewServer(":0", m.Registry)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "manifestgen_runs_total")
	assert.Contains(t, string(body), "go_goroutines")
}
