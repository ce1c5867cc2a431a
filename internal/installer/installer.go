package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"time"

	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/platform"
)

// Status is the outcome of one installer run.
type Status string

const (
	StatusInstalled    Status = "installed"
	StatusPresent      Status = "present"
	StatusSkipped      Status = "skipped"
	StatusWouldInstall Status = "would-install"
	StatusFailed       Status = "failed"
)

// Result reports what an installer did.
type Result struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Version   string        `json:"version,omitempty"`
	Notes     []string      `json:"notes,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Err       error         `json:"-"`
}

// Failed reports whether the run failed.
func (r Result) Failed() bool { return r.Status == StatusFailed }

func failed(name string, err error, notes []string) Result {
	return Result{Component: name, Status: StatusFailed, Err: err, Error: err.Error(), Notes: notes}
}

// Installer installs one component.
type Installer interface {
	Name() string
	Install(ctx context.Context, env *Env) Result
}

// StateStore is the slice of the state store installers use.
type StateStore interface {
	IsInstalled(name string) bool
	Version(name string) (string, bool)
	MarkInstalled(name, version string) error
	Backup(path string) (string, error)
}

// Fetcher retrieves verified artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest, checksum string) error
}

// ReleaseLookup resolves the latest released version of a repository.
type ReleaseLookup interface {
	Latest(ctx context.Context, repo string) (string, error)
}

// Env carries everything an installer may touch. It is built once per run
// and shared by every installer.
type Env struct {
	DryRun   bool
	State    StateStore
	Cache    Fetcher
	Runner   Runner
	Releases ReleaseLookup
	Logger   *logx.Logger
	Layout   paths.Layout
	Arch     platform.Arch
	OS       platform.Info
	// Versions pins component versions; "latest" asks Releases.
	Versions map[string]string
	// Sudo prefixes privileged commands with sudo.
	Sudo bool
	// WorkDir holds downloads before they are installed.
	WorkDir  string
	LookPath func(string) (string, error)
	// HTTP fetches published checksum files.
	HTTP *http.Client

	aptUpdated bool
}

// NonCritical logs a failed optional step as a warning and records it on res.
func (e *Env) NonCritical(res *Result, step string, err error) {
	if err == nil {
		return
	}
	e.Logger.Warnf("%s: %s failed (continuing): %v", res.Component, step, err)
	res.Notes = append(res.Notes, fmt.Sprintf("%s failed: %v", step, err))
}

func (e *Env) lookPath(name string) (string, error) {
	if e.LookPath != nil {
		return e.LookPath(name)
	}
	return exec.LookPath(name)
}

func (e *Env) versionOverride(name string) string {
	if e.Versions == nil {
		return ""
	}
	return e.Versions[name]
}

func (e *Env) workDir(name string) (string, func(), error) {
	base := e.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", nil, fmt.Errorf("prepare work dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, name+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// Registry maps component names to installers.
type Registry struct {
	byName map[string]Installer
	order  []string
}

// NewRegistry registers installers in order. Duplicate names are an error.
func NewRegistry(installers ...Installer) (*Registry, error) {
	r := &Registry{byName: make(map[string]Installer, len(installers))}
	for _, inst := range installers {
		if err := r.Register(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds inst.
func (r *Registry) Register(inst Installer) error {
	name := inst.Name()
	if name == "" {
		return fmt.Errorf("installer with empty name")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("installer %q registered twice", name)
	}
	r.byName[name] = inst
	r.order = append(r.order, name)
	return nil
}

// Get returns the installer for name.
func (r *Registry) Get(name string) (Installer, bool) {
	inst, ok := r.byName[name]
	return inst, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// SortedNames returns registered names alphabetically.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
