package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/born-ml/probe/internal/fetch"
	"github.com/born-ml/probe/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// server answers requests carrying the primary User-Agent with primaryStatus
// and everything else with the payload.
func server(t *testing.T, primaryStatus int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.Header.Get("User-Agent") == fetch.DefaultUserAgent && primaryStatus != http.StatusOK {
			w.WriteHeader(primaryStatus)
			return
		}
		_, _ = w.Write([]byte("woof"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_Primary(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, http.StatusOK, &hits)
	dest := filepath.Join(t.TempDir(), "dog.jpg")

	require.NoError(t, fetch.New(logger.Nop()).Download(context.Background(), srv.URL+"/dog.jpg", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "woof", string(data))
	assert.Equal(t, int32(1), hits.Load())

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestDownload_Fallback(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, http.StatusForbidden, &hits)
	dest := filepath.Join(t.TempDir(), "dog.jpg")

	require.NoError(t, fetch.New(nil).Download(context.Background(), srv.URL+"/dog.jpg", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "woof", string(data))
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownload_BothFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "dog.jpg")

	err := fetch.New(logger.Nop()).Download(context.Background(), srv.URL+"/dog.jpg", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "image must not exist after failure")
}

func TestDownload_CanceledSkipsFallback(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, http.StatusOK, &hits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fetch.New(logger.Nop()).Download(ctx, srv.URL+"/dog.jpg", filepath.Join(t.TempDir(), "dog.jpg"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestCached(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, http.StatusOK, &hits)
	dir := filepath.Join(t.TempDir(), "hub")
	d := fetch.New(logger.Nop())

	path, err := d.Cached(context.Background(), srv.URL+"/weights/resnet50.safetensors", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "resnet50.safetensors"), path)

	again, err := d.Cached(context.Background(), srv.URL+"/weights/resnet50.safetensors", dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCached_TruncatedBodyIsNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("truncated"))
	}))
	defer srv.Close()
	dir := t.TempDir()
	d := fetch.New(logger.Nop())

	_, err := d.Cached(context.Background(), srv.URL+"/model.safetensors", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial downloads must not survive")

	_, err = d.Cached(context.Background(), srv.URL+"/model.safetensors", dir)
	require.Error(t, err, "a failed download is never a cache hit")
	assert.Equal(t, int32(4), hits.Load())
}

func TestFileName(t *testing.T) {
	name, err := fetch.FileName("https://github.com/pytorch/hub/raw/master/images/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "dog.jpg", name)

	_, err = fetch.FileName("https://example.com/")
	assert.Error(t, err)
}
