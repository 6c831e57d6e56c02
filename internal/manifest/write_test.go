package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  map[string]bool
}

func (m *memSink) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[name] {
		return errors.New("disk full")
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = data
	return nil
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "json": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML} {
		f, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	_, err := ParseFormat("toml")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "n1_manifest.json", Filename("n1", FormatJSON))
	assert.Equal(t, "n1_manifest.yaml", Filename("n1", FormatYAML))
}

func TestEncode_YAML(t *testing.T) {
	entries := build(t, exampleTopology(), Builder{})

	data, err := Encode(entries[0].Manifest, FormatYAML)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, []any{"role[control-node]"}, doc["run_list"])

	cluster, ok := doc["cluster"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3.0.1", cluster["version"])
	assert.Equal(t, map[string]any{"ip": "10.0.0.1", "host": "n1", "fqdn": "n1.local"}, cluster["node"])
}

func TestWriteAll_Dir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	entries := build(t, exampleTopology(), Builder{})

	written, err := WriteAll(context.Background(), DirSink{Dir: dir}, entries, FormatJSON, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1_manifest.json", "n2_manifest.json"}, written)

	data, err := os.ReadFile(filepath.Join(dir, "n2_manifest.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{"role[data-node]"}, doc["run_list"])
}

func TestDirSink_RejectsPathNames(t *testing.T) {
	root := t.TempDir()
	sink := DirSink{Dir: filepath.Join(root, "out")}

	for _, name := range []string{"../escaped_manifest.json", "a/b_manifest.json", `a\b_manifest.json`, ".."} {
		err := sink.Put(context.Background(), name, []byte("{}"))
		assert.Error(t, err, name)
	}

	_, err := os.Stat(filepath.Join(root, "escaped_manifest.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAll_PartialFailure(t *testing.T) {
	sink := &memSink{fail: map[string]bool{"n1_manifest.json": true}}
	entries := build(t, exampleTopology(), Builder{})

	written, err := WriteAll(context.Background(), sink, entries, FormatJSON, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialWrite)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, []string{"n1"}, werr.Hosts())
	assert.Equal(t, "n1_manifest.json", werr.Failures[0].File)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, []string{"n2_manifest.json"}, written)
	assert.Contains(t, sink.files, "n2_manifest.json")
	assert.NotContains(t, sink.files, "n1_manifest.json")
}

func TestS3Sink_Put(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewS3Sink(S3Config{
		Endpoint:  srv.URL,
		Bucket:    "manifests",
		Prefix:    "/prod/",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "prod/n1_manifest.json", sink.ObjectKey("n1_manifest.json"))
	assert.Equal(t, "s3://manifests/prod", sink.String())

	require.NoError(t, sink.Put(context.Background(), "n1_manifest.json", []byte(`{}`)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/manifests/prod/n1_manifest.json", path)
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(S3Config{})
	assert.Error(t, err)
}
