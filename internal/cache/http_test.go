package cache

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/logx"
)

func TestHTTPDownloaderRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	logger, mem := logx.NewMemory()
	d := &HTTPDownloader{Attempts: 3, Logger: logger}
	dest := filepath.Join(t.TempDir(), "file")

	require.NoError(t, d.Download(context.Background(), srv.URL+"/file", dest))
	assert.Equal(t, int32(3), hits.Load())
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
	assert.True(t, mem.Contains(logx.LevelInfo, "succeeded on attempt 3"))
}

func TestHTTPDownloaderGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := &HTTPDownloader{Attempts: 2}
	err := d.Download(context.Background(), srv.URL+"/file", filepath.Join(t.TempDir(), "file"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPDownloaderDoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := &HTTPDownloader{Attempts: 3}
	require.Error(t, d.Download(context.Background(), srv.URL+"/missing", filepath.Join(t.TempDir(), "f")))
	assert.Equal(t, int32(1), hits.Load())
}

func TestParallelDownloaderSplitsRanges(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	var ranged atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			ranged.Add(1)
		}
		http.ServeContent(w, r, "blob.bin", time.Time{}, bytes.NewReader(body))
	}))
	defer srv.Close()

	p := &ParallelDownloader{Connections: 4, Attempts: 2, MinSize: 1024}
	dest := filepath.Join(t.TempDir(), "blob.bin")

	require.NoError(t, p.Download(context.Background(), srv.URL+"/blob.bin", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, int32(4), ranged.Load())
}

func TestParallelDownloaderFallsBackWithoutRanges(t *testing.T) {
	body := []byte(strings.Repeat("x", 4096))
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		gets.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	p := &ParallelDownloader{Connections: 4, Attempts: 3, MinSize: 1}
	dest := filepath.Join(t.TempDir(), "plain.bin")

	require.NoError(t, p.Download(context.Background(), srv.URL+"/plain.bin", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, int32(1), gets.Load())
}

func TestParallelDownloaderFallsBackWhenRangesBreak(t *testing.T) {
	body := bytes.Repeat([]byte("z"), 8192)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Accept-Ranges", "bytes")
		http.ServeContent(w, r, "b.bin", time.Time{}, bytes.NewReader(body))
	}))
	defer srv.Close()

	logger, mem := logx.NewMemory()
	p := &ParallelDownloader{Connections: 2, Attempts: 1, MinSize: 1, Logger: logger}
	dest := filepath.Join(t.TempDir(), "b.bin")

	require.NoError(t, p.Download(context.Background(), srv.URL+"/b.bin", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.True(t, mem.Contains(logx.LevelWarn, "falling back"))
}
