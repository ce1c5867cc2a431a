package provision

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/cache"
	"devsetup/internal/config"
	"devsetup/internal/deps"
	"devsetup/internal/installer"
	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/platform"
	"devsetup/internal/progress"
	"devsetup/internal/state"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRunner) Run(_ context.Context, command string, args []string, _ installer.RunOptions) (installer.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
	return installer.RunResult{}, nil
}

type recordingReporter struct {
	total     int
	started   []string
	completed []string
	last      progress.Snapshot
}

func (r *recordingReporter) Plan(_ []string, total int) { r.total = total }
func (r *recordingReporter) Start(name string)          { r.started = append(r.started, name) }
func (r *recordingReporter) Complete(res installer.Result, snap progress.Snapshot) {
	r.completed = append(r.completed, res.Component)
	r.last = snap
}

type artifactServer struct {
	*httptest.Server
	hits map[string]*atomic.Int32
}

func newArtifactServer(t *testing.T, bodies map[string][]byte) *artifactServer {
	t.Helper()
	s := &artifactServer{hits: map[string]*atomic.Int32{}}
	for p := range bodies {
		s.hits[p] = &atomic.Int32{}
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.hits[r.URL.Path].Add(1)
		w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

type fixture struct {
	root     string
	layout   paths.Layout
	cfg      config.Config
	srv      *artifactServer
	runner   *recordingRunner
	reporter *recordingReporter
	memory   *logx.Memory
	registry  *installer.Registry
	progress  *bytes.Buffer
	osRelease string
	logger    *logx.Logger
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func helmTarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("#!/bin/sh\necho helm\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "linux-amd64/helm", Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	kubectl := []byte("#!/bin/sh\necho kubectl\n")
	helm := helmTarball(t)
	srv := newArtifactServer(t, map[string][]byte{
		"/kubectl/v1.30.3/kubectl":              kubectl,
		"/helm/helm-v3.15.3-linux-amd64.tar.gz": helm,
	})

	registry, err := installer.NewRegistry(
		&installer.Download{
			Component:      "kubectl",
			URL:            srv.URL + "/kubectl/v{version}/kubectl",
			DefaultVersion: "1.30.3",
			Checksums:      map[string]string{"*": sha256Hex(kubectl)},
			Binaries:       []string{"kubectl"},
		},
		&installer.Download{
			Component:      "helm",
			URL:            srv.URL + "/helm/helm-v{version}-linux-{goarch}.tar.gz",
			DefaultVersion: "3.15.3",
			Checksums:      map[string]string{"amd64": sha256Hex(helm)},
			Archive:        installer.ArchiveTarGz,
			Binaries:       []string{"helm"},
		},
		&installer.Apt{Component: "git", Packages: []string{"git"}},
	)
	require.NoError(t, err)

	osRelease := filepath.Join(root, "os-release")
	require.NoError(t, os.WriteFile(osRelease, []byte("ID=debian\nVERSION_CODENAME=bookworm\nPRETTY_NAME=\"Debian 12\"\n"), 0o644))

	cfg := config.Default()
	cfg.AutoApprove = true
	cfg.ConnectivityURL = ""
	cfg.DiskMinFreeMB = 0

	logger, memory := logx.NewMemory()
	return &fixture{
		root:      root,
		layout:    paths.ForRoot(root),
		cfg:       cfg,
		srv:       srv,
		runner:    &recordingRunner{},
		reporter:  &recordingReporter{},
		memory:    memory,
		registry:  registry,
		progress:  &bytes.Buffer{},
		osRelease: osRelease,
		logger:    logger,
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	arch := platform.Arch{GOARCH: "amd64", Uname: "x86_64", Deb: "amd64"}
	o, err := New(context.Background(), Options{
		Config:        f.cfg,
		Layout:        f.layout,
		Registry:      f.registry,
		Deps:          deps.Table{"helm": "kubectl"},
		Logger:        f.logger,
		Progress:      f.progress,
		Reporter:      f.reporter,
		Runner:        f.runner,
		LookPath:      func(string) (string, error) { return "", errors.New("not found") },
		Downloader:    cache.NewHTTPDownloader(1, 0, 5*time.Second, f.logger),
		Releases:      noReleases{},
		Arch:          &arch,
		OSReleasePath: f.osRelease,
		RemovalHints:  map[string]string{"kubectl": "rm ~/.local/bin/kubectl"},
		Detectors: map[string]installer.Detector{
			"kubectl": {Command: "kubectl"},
		},
	})
	require.NoError(t, err)
	return o
}

type noReleases struct{}

func (noReleases) Latest(context.Context, string) (string, error) {
	return "", errors.New("offline")
}

func TestFreshRunInstallsPrerequisiteFirst(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)

	sum, err := o.Run(context.Background(), []string{"helm"})
	require.NoError(t, err)

	require.Len(t, sum.Results, 2)
	assert.Equal(t, "kubectl", sum.Results[0].Component)
	assert.Equal(t, "helm", sum.Results[1].Component)
	for _, res := range sum.Results {
		assert.Equal(t, installer.StatusInstalled, res.Status, res.Error)
	}
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, f.reporter.total)
	assert.Equal(t, []string{"kubectl", "helm"}, f.reporter.completed)
	assert.Equal(t, 100, f.reporter.last.Percent)
	assert.Contains(t, f.progress.String(), "[2/2] 100%")

	for _, bin := range []string{"kubectl", "helm"} {
		_, err := os.Stat(filepath.Join(f.layout.BinDir, bin))
		assert.NoError(t, err, bin)
	}

	data, err := os.ReadFile(f.layout.StateFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"helm": "3.15.3"`)
	assert.Contains(t, string(data), `"kubectl": "1.30.3"`)
	assert.Contains(t, string(data), o.RunID())

	log, err := os.ReadFile(f.layout.TransactionLog)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(log), " INSTALL "))
}

func TestWarmCacheReusesArtifacts(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator(t).Run(context.Background(), []string{"helm"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.layout.StateFile))
	require.NoError(t, os.RemoveAll(f.layout.BinDir))

	sum, err := f.orchestrator(t).Run(context.Background(), []string{"helm"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count(installer.StatusInstalled))
	for p, hits := range f.srv.hits {
		assert.EqualValues(t, 1, hits.Load(), p)
	}
}

func TestSecondRunSkipsRecordedComponents(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator(t).Run(context.Background(), []string{"helm"})
	require.NoError(t, err)

	sum, err := f.orchestrator(t).Run(context.Background(), []string{"helm"})
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, installer.StatusSkipped, sum.Results[0].Status)
	assert.Equal(t, 1, sum.Total)
}

func TestDryRunTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true
	f.cfg.AutoApprove = false
	o := f.orchestrator(t)

	sum, err := o.Run(context.Background(), []string{"helm", "git"})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 3, sum.Count(installer.StatusWouldInstall))
	assert.Empty(t, f.runner.calls)
	for _, hits := range f.srv.hits {
		assert.Zero(t, hits.Load())
	}
	for _, path := range []string{f.layout.StateFile, f.layout.TransactionLog, f.layout.CacheDir, f.layout.BinDir} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "%s should not exist", path)
	}
}

func TestFailedComponentDoesNotStopRun(t *testing.T) {
	f := newFixture(t)
	bad, err := installer.NewRegistry(
		&installer.Download{Component: "broken", URL: f.srv.URL + "/missing/tool", DefaultVersion: "1.0.0", Binaries: []string{"tool"}},
		&installer.Apt{Component: "git", Packages: []string{"git"}},
	)
	require.NoError(t, err)
	f.registry = bad

	sum, err := f.orchestrator(t).Run(context.Background(), []string{"broken", "git", "unknown"})
	require.NoError(t, err)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, installer.StatusFailed, sum.Results[0].Status)
	assert.Equal(t, installer.StatusInstalled, sum.Results[1].Status)
	assert.Equal(t, installer.StatusFailed, sum.Results[2].Status)
	assert.True(t, sum.Failed())
	assert.True(t, f.memory.Contains(logx.LevelError, "broken"))
}

func TestUnsupportedPlatformAborts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.osRelease, []byte("ID=arch\n"), 0o644))

	sum, err := f.orchestrator(t).Run(context.Background(), []string{"git"})
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
	assert.Empty(t, sum.Results)
	assert.Empty(t, f.runner.calls)
}

func TestConfirmationDeclined(t *testing.T) {
	f := newFixture(t)
	f.cfg.AutoApprove = false
	o := f.orchestrator(t)
	var asked []string
	o.opts.Confirm = func(components []string) (bool, error) {
		asked = components
		return false, nil
	}

	_, err := o.Run(context.Background(), []string{"git"})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, []string{"git"}, asked)
	assert.Empty(t, f.runner.calls)
}

func TestConcurrentRunIsRefused(t *testing.T) {
	f := newFixture(t)
	release, err := state.AcquireLock(f.layout.LockFile)
	require.NoError(t, err)
	defer release()

	_, err = f.orchestrator(t).Run(context.Background(), []string{"git"})
	assert.ErrorIs(t, err, state.ErrLocked)
	assert.Empty(t, f.runner.calls)
}

func TestDryRunIgnoresLock(t *testing.T) {
	f := newFixture(t)
	release, err := state.AcquireLock(f.layout.LockFile)
	require.NoError(t, err)
	defer release()

	f.cfg.DryRun = true
	sum, err := f.orchestrator(t).Run(context.Background(), []string{"git"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count(installer.StatusWouldInstall))
}

func TestCorruptStateIsAWarning(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.layout.StateFile), 0o755))
	require.NoError(t, os.WriteFile(f.layout.StateFile, []byte("{not json"), 0o644))

	sum, err := f.orchestrator(t).Run(context.Background(), []string{"git"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count(installer.StatusInstalled))
	assert.True(t, f.memory.Contains(logx.LevelWarn, "starting from an empty state"))
}

func TestEstimateTotal(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)
	assert.Equal(t, 2, o.EstimateTotal([]string{"helm"}))
	assert.Equal(t, 2, o.EstimateTotal([]string{"helm", "kubectl"}))
	assert.Equal(t, 3, o.EstimateTotal([]string{"git", "helm"}))

	require.NoError(t, o.state.MarkInstalled("kubectl", "1.30.3"))
	assert.Equal(t, 1, o.EstimateTotal([]string{"helm"}))
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.cfg.Minimums = map[string]string{"kubectl": "1.31.0"}
	_, err := f.orchestrator(t).Run(context.Background(), []string{"helm"})
	require.NoError(t, err)

	o := f.orchestrator(t)
	o.env.LookPath = func(name string) (string, error) { return "/usr/local/bin/" + name, nil }
	f.runner.calls = nil

	checks, err := o.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "helm", checks[0].Component)
	assert.Equal(t, CheckRecorded, checks[0].Status)
	assert.Equal(t, "kubectl", checks[1].Component)
	assert.Equal(t, CheckOK, checks[1].Status)
	assert.Equal(t, "version cannot be compared with the minimum", checks[1].Detail)
}

func TestCompareVersions(t *testing.T) {
	cmp, ok := compareVersions("1.30.3", "1.31.0")
	assert.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = compareVersions("v2.0", "1.9.9")
	assert.True(t, ok)
	assert.Positive(t, cmp)

	_, ok = compareVersions("unknown", "1.0.0")
	assert.False(t, ok)
}

func TestRollbackGuide(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator(t).Run(context.Background(), []string{"kubectl"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, f.orchestrator(t).RollbackGuide(&out))
	text := out.String()
	assert.Contains(t, text, "Automatic rollback is not supported")
	assert.Contains(t, text, f.layout.TransactionLog)
	assert.Contains(t, text, "rm ~/.local/bin/kubectl")
}

func TestSelfTest(t *testing.T) {
	results, err := SelfTest(context.Background(), logx.Discard())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.OK(), "%s: %s", r.Name, r.Error)
	}
}
