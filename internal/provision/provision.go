// Package provision runs the selected installers against one machine.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"devsetup/internal/cache"
	"devsetup/internal/config"
	"devsetup/internal/deps"
	"devsetup/internal/installer"
	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/platform"
	"devsetup/internal/progress"
	"devsetup/internal/release"
	"devsetup/internal/state"
)

// ErrAborted is returned when the user declines the confirmation prompt.
var ErrAborted = errors.New("aborted by user")

// Reporter receives per-component progress.
type Reporter interface {
	Plan(components []string, total int)
	Start(name string)
	Complete(res installer.Result, snap progress.Snapshot)
}

type nopReporter struct{}

func (nopReporter) Plan([]string, int)                            {}
func (nopReporter) Start(string)                                  {}
func (nopReporter) Complete(installer.Result, progress.Snapshot) {}

// Options wires an Orchestrator. Only Config, Layout and Registry are
// required; the rest default to the real system.
type Options struct {
	Config   config.Config
	Layout   paths.Layout
	Registry *installer.Registry
	Deps     deps.Table
	Logger   *logx.Logger
	// RemovalHints and Detectors come from the catalog.
	RemovalHints map[string]string
	Detectors    map[string]installer.Detector

	// Progress receives the plain status line; nil disables it.
	Progress io.Writer
	Reporter Reporter
	// Confirm asks before a real run. nil means approved.
	Confirm func(components []string) (bool, error)

	Runner        installer.Runner
	LookPath      func(string) (string, error)
	Downloader    cache.Downloader
	Releases      installer.ReleaseLookup
	HTTP          *http.Client
	Arch          *platform.Arch
	OSReleasePath string
}

// Summary is the outcome of a run.
type Summary struct {
	RunID   string             `json:"run_id"`
	DryRun  bool               `json:"dry_run"`
	OS      string             `json:"os,omitempty"`
	Total   int                `json:"total"`
	Results []installer.Result `json:"results"`
	Elapsed time.Duration      `json:"elapsed_ns"`
}

// Count returns how many results have status.
func (s Summary) Count(status installer.Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any component failed.
func (s Summary) Failed() bool { return s.Count(installer.StatusFailed) > 0 }

// Orchestrator owns the run state: the state store, the resolver and the
// progress tracker. Installers see them only through installer.Env.
type Orchestrator struct {
	opts     Options
	cfg      config.Config
	layout   paths.Layout
	logger   *logx.Logger
	runID    string
	dryRun   bool
	state    *state.Store
	cache    *cache.Cache
	resolver *deps.Resolver
	tracker  *progress.Tracker
	reporter Reporter
	env      *installer.Env

	results map[string]installer.Result
	order   []string
}

// New builds an orchestrator. A mirror that cannot be configured is logged
// and skipped.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("provision: registry is required")
	}
	cfg := opts.Config
	layout := opts.Layout.WithPrefix(cfg.InstallPrefix)
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	runID := uuid.NewString()
	logger.SetPrefix(runID[:8])

	o := &Orchestrator{
		opts:     opts,
		cfg:      cfg,
		layout:   layout,
		logger:   logger,
		runID:    runID,
		dryRun:   cfg.DryRun,
		tracker:  progress.New(opts.Progress),
		reporter: opts.Reporter,
		results:  map[string]installer.Result{},
	}
	if o.reporter == nil {
		o.reporter = nopReporter{}
	}

	o.state = state.New(state.Options{
		Path:       layout.StateFile,
		TxLog:      state.NewTxLog(layout.TransactionLog, cfg.DryRun),
		BackupsDir: layout.BackupsDir,
		DryRun:     cfg.DryRun,
		RunID:      runID,
		Logger:     logger,
	})
	o.cache = o.newCache(ctx)

	releases := opts.Releases
	if releases == nil {
		releases = release.New(layout.ReleaseCacheFile, os.Getenv(cfg.Downloads.GitHubTokenEnv), logger)
	}
	runner := opts.Runner
	if runner == nil {
		runner = installer.CmdRunner{}
	}

	o.env = &installer.Env{
		DryRun:   cfg.DryRun,
		State:    o.state,
		Cache:    o.cache,
		Runner:   runner,
		Releases: releases,
		Logger:   logger,
		Layout:   layout,
		Versions: cfg.Versions,
		Sudo:     os.Geteuid() != 0,
		WorkDir:  filepath.Join(layout.Home, "work"),
		LookPath: opts.LookPath,
		HTTP:     opts.HTTP,
	}
	o.resolver = &deps.Resolver{
		Table:     opts.Deps,
		State:     o.state,
		Installer: o,
		Strict:    cfg.StrictDependencies,
		Logger:    logger,
	}
	return o, nil
}

func (o *Orchestrator) newCache(ctx context.Context) *cache.Cache {
	d := o.cfg.Downloads
	wait := time.Duration(d.RetryWaitSec) * time.Second
	timeout := time.Duration(d.TimeoutSec) * time.Second

	downloader := o.opts.Downloader
	if downloader == nil {
		if d.Connections > 1 {
			downloader = cache.NewParallelDownloader(d.Connections, d.Retries, wait, timeout, o.logger)
		} else {
			downloader = cache.NewHTTPDownloader(d.Retries, wait, timeout, o.logger)
		}
	}
	c := cache.New(o.layout.CacheDir, downloader, o.logger)
	c.DryRun = o.dryRun

	if d.Mirror.Enabled() {
		accessKey, secretKey := d.Mirror.Credentials(os.Getenv)
		mirror, err := cache.NewS3Mirror(ctx, cache.MirrorOptions{
			Bucket:          d.Mirror.Bucket,
			Prefix:          d.Mirror.Prefix,
			Region:          d.Mirror.Region,
			Endpoint:        d.Mirror.Endpoint,
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		})
		if err != nil {
			o.logger.Warnf("artifact mirror disabled: %v", err)
		} else {
			c.Mirror = mirror
		}
	}
	return c
}

// RunID identifies this run in the state file and the log.
func (o *Orchestrator) RunID() string { return o.runID }

// State exposes the store for read-only commands.
func (o *Orchestrator) State() *state.Store { return o.state }

// Cache exposes the download cache for maintenance commands.
func (o *Orchestrator) Cache() *cache.Cache { return o.cache }

// Run installs components in order. Prerequisites are installed on demand.
// Only preflight failures, a declined prompt, a concurrent run holding the
// lock, a state that cannot be read and a final persist failure return an
// error; component failures are in the summary.
func (o *Orchestrator) Run(ctx context.Context, components []string) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: o.runID, DryRun: o.dryRun}

	info, err := o.preflight(ctx)
	if err != nil {
		return sum, err
	}
	sum.OS = info.PrettyName

	if !o.dryRun && !o.cfg.AutoApprove && o.opts.Confirm != nil {
		ok, err := o.opts.Confirm(components)
		if err != nil {
			return sum, err
		}
		if !ok {
			return sum, ErrAborted
		}
	}

	if !o.dryRun {
		if err := o.layout.Ensure(); err != nil {
			return sum, fmt.Errorf("prepare directories: %w", err)
		}
		release, err := state.AcquireLock(o.layout.LockFile)
		if err != nil {
			return sum, err
		}
		defer release()
	}
	if err := o.state.Load(); err != nil {
		if !errors.Is(err, state.ErrStateCorrupt) {
			return sum, err
		}
		o.logger.Warnf("%v; starting from an empty state", err)
	}
	o.extendPath()

	sum.Total = o.EstimateTotal(components)
	o.tracker.SetTotal(sum.Total)
	o.reporter.Plan(components, sum.Total)
	o.logger.Infof("run %s: %d component(s), dry-run=%t", o.runID, len(components), o.dryRun)

	for _, name := range components {
		if ctx.Err() != nil {
			break
		}
		o.installOne(ctx, name)
	}
	o.tracker.Finish()

	for _, name := range o.order {
		sum.Results = append(sum.Results, o.results[name])
	}
	sum.Elapsed = time.Since(start)

	if err := o.state.Persist(); err != nil {
		return sum, err
	}
	o.logger.Infof("run %s finished in %s: %d installed, %d failed",
		o.runID, progress.FormatDuration(sum.Elapsed), sum.Count(installer.StatusInstalled), sum.Count(installer.StatusFailed))
	return sum, ctx.Err()
}

func (o *Orchestrator) preflight(ctx context.Context) (platform.Info, error) {
	info, err := platform.Detect(o.opts.OSReleasePath)
	if err != nil {
		o.logger.Errorf("%v", err)
		return info, err
	}
	o.env.OS = info

	if o.opts.Arch != nil {
		o.env.Arch = *o.opts.Arch
	} else {
		arch, err := platform.DetectArch()
		if err != nil {
			return info, err
		}
		o.env.Arch = arch
	}
	o.logger.Infof("platform %s (%s)", info.PrettyName, o.env.Arch.Uname)

	if err := platform.CheckDiskSpace(existingAncestor(o.layout.Home), o.cfg.DiskMinFreeMB); err != nil {
		o.logger.Warnf("%v", err)
	}
	if !o.dryRun {
		if err := platform.CheckConnectivity(ctx, o.opts.HTTP, o.cfg.ConnectivityURL); err != nil {
			o.logger.Warnf("%v; downloads will likely fail", err)
		}
	}
	return info, nil
}

// extendPath lets later installers find binaries placed by earlier ones.
func (o *Orchestrator) extendPath() {
	dirs := []string{o.layout.BinDir}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".cargo", "bin"))
	}
	current := os.Getenv("PATH")
	for _, dir := range dirs {
		if !strings.Contains(":"+current+":", ":"+dir+":") {
			current = dir + string(os.PathListSeparator) + current
		}
	}
	_ = os.Setenv("PATH", current)
}

// EstimateTotal counts the selected components plus every prerequisite in
// their chains that is neither selected nor installed.
func (o *Orchestrator) EstimateTotal(components []string) int {
	counted := map[string]bool{}
	for _, name := range components {
		counted[name] = true
	}
	total := len(counted)
	for _, name := range components {
		cur := name
		for {
			prereq, ok := o.opts.Deps.Prerequisite(cur)
			if !ok || counted[prereq] || o.state.IsInstalled(prereq) {
				break
			}
			counted[prereq] = true
			total++
			cur = prereq
		}
	}
	return total
}

// Has reports whether an installer is registered for name.
func (o *Orchestrator) Has(name string) bool { return o.opts.Registry.Has(name) }

// InstallComponent installs name and its prerequisites. The resolver calls
// it for missing prerequisites.
func (o *Orchestrator) InstallComponent(ctx context.Context, name string) error {
	res := o.installOne(ctx, name)
	if res.Failed() {
		return res.Err
	}
	return nil
}

func (o *Orchestrator) installOne(ctx context.Context, name string) installer.Result {
	if res, ok := o.results[name]; ok {
		return res
	}
	inst, ok := o.opts.Registry.Get(name)
	if !ok {
		return o.finish(failure(name, fmt.Errorf("no installer registered for %q", name)))
	}
	if err := o.resolver.Resolve(ctx, name); err != nil {
		return o.finish(failure(name, err))
	}
	if res, ok := o.results[name]; ok {
		return res
	}

	o.reporter.Start(name)
	return o.finish(inst.Install(ctx, o.env))
}

func (o *Orchestrator) finish(res installer.Result) installer.Result {
	o.results[res.Component] = res
	o.order = append(o.order, res.Component)
	snap := o.tracker.Advance()
	o.reporter.Complete(res, snap)
	if res.Failed() {
		o.logger.Errorf("%s: %s", res.Component, res.Error)
	}
	return res
}

func failure(name string, err error) installer.Result {
	return installer.Result{Component: name, Status: installer.StatusFailed, Err: err, Error: err.Error()}
}

func existingAncestor(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
