package release

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v69/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/logx"
)

func newTestResolver(t *testing.T, tag string, status int) (*Resolver, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/repos/helm/helm/releases/latest" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"tag_name":%q}`, tag)
	}))
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	return &Resolver{
		Client:    client,
		CachePath: filepath.Join(t.TempDir(), "releases.json"),
		Logger:    logx.Discard(),
	}, &hits
}

func TestLatestStripsPrefixAndCaches(t *testing.T) {
	r, hits := newTestResolver(t, "v3.15.3", http.StatusOK)
	ctx := context.Background()

	v, err := r.Latest(ctx, "helm/helm")
	require.NoError(t, err)
	assert.Equal(t, "3.15.3", v)

	v, err = r.Latest(ctx, "helm/helm")
	require.NoError(t, err)
	assert.Equal(t, "3.15.3", v)
	assert.EqualValues(t, 1, hits.Load())
}

func TestLatestCacheSurvivesNewResolver(t *testing.T) {
	r, hits := newTestResolver(t, "v3.15.3", http.StatusOK)
	_, err := r.Latest(context.Background(), "helm/helm")
	require.NoError(t, err)

	again := &Resolver{Client: r.Client, CachePath: r.CachePath, Logger: logx.Discard()}
	_, err = again.Latest(context.Background(), "helm/helm")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestLatestExpiredEntryIsRefreshed(t *testing.T) {
	r, hits := newTestResolver(t, "v3.15.3", http.StatusOK)
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Latest(context.Background(), "helm/helm")
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	_, err = r.Latest(context.Background(), "helm/helm")
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestLatestErrors(t *testing.T) {
	r, _ := newTestResolver(t, "", http.StatusInternalServerError)

	_, err := r.Latest(context.Background(), "helm/helm")
	assert.Error(t, err)

	_, err = r.Latest(context.Background(), "not-a-repo")
	assert.ErrorContains(t, err, "invalid repository")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1.2.3", Normalize("v1.2.3"))
	assert.Equal(t, "1.7.1", Normalize("jq-1.7.1"))
	assert.Equal(t, "2.29.1", Normalize("2.29.1"))
	assert.Equal(t, "", Normalize("nightly"))
}
