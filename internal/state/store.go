package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"devsetup/internal/logx"
)

// FormatVersion tags the state file layout.
const FormatVersion = "1.0"

var (
	ErrStateWrite   = errors.New("state write failed")
	ErrStateCorrupt = errors.New("state file corrupt")
)

// File is the on-disk shape of the state store.
type File struct {
	Version   string            `json:"version"`
	LastRun   time.Time         `json:"last_run"`
	RunID     string            `json:"run_id,omitempty"`
	Installed map[string]string `json:"installed"`
}

// Component is one installed entry.
type Component struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Options configures a Store.
type Options struct {
	Path       string
	TxLog      *TxLog
	BackupsDir string
	DryRun     bool
	RunID      string
	Logger     *logx.Logger
}

// Store tracks installed components for one run and persists them between
// runs. It is owned by a single goroutine and does no locking.
type Store struct {
	path       string
	installed  map[string]string
	lastRun    time.Time
	runID      string
	dryRun     bool
	tx         *TxLog
	backupsDir string
	logger     *logx.Logger
	now        func() time.Time
}

// New returns an empty store. Call Load to read the previous run's state.
func New(opts Options) *Store {
	return &Store{
		path:       opts.Path,
		installed:  map[string]string{},
		runID:      opts.RunID,
		dryRun:     opts.DryRun,
		tx:         opts.TxLog,
		backupsDir: opts.BackupsDir,
		logger:     opts.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// LastRun returns the timestamp loaded from or last written to disk.
func (s *Store) LastRun() time.Time { return s.lastRun }

// Load replaces the in-memory map with the persisted one. A missing file
// leaves the store empty. Malformed content also leaves it empty and returns
// an error wrapping ErrStateCorrupt, which callers treat as a warning.
func (s *Store) Load() error {
	s.installed = map[string]string{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStateCorrupt, s.path, err)
	}
	for name, version := range f.Installed {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s.installed[name] = version
	}
	s.lastRun = f.LastRun
	s.logger.Debugf("loaded %d installed component(s) from %s", len(s.installed), s.path)
	return nil
}

// MarkInstalled records or overwrites name's version and persists the store.
// The INSTALL transaction line is written only once the state file holds the
// entry; a failed persist restores the previous in-memory value. In dry-run
// mode only the in-memory map changes.
func (s *Store) MarkInstalled(name, version string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty component name", ErrStateWrite)
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "unknown"
	}

	prev, had := s.installed[name]
	s.installed[name] = version
	if s.dryRun {
		s.logger.Infof("[dry-run] would record %s %s", name, version)
		return nil
	}

	if err := s.Persist(); err != nil {
		if had {
			s.installed[name] = prev
		} else {
			delete(s.installed, name)
		}
		return err
	}
	if err := s.tx.Append(ActionInstall, name, version); err != nil {
		s.logger.Warnf("transaction log: %v", err)
	}
	s.logger.Infof("recorded %s %s", name, version)
	return nil
}

// IsInstalled reports whether name has an entry.
func (s *Store) IsInstalled(name string) bool {
	_, ok := s.installed[name]
	return ok
}

// Version returns the recorded version for name.
func (s *Store) Version(name string) (string, bool) {
	v, ok := s.installed[name]
	return v, ok
}

// Installed returns every entry ordered by name.
func (s *Store) Installed() []Component {
	out := make([]Component, 0, len(s.installed))
	for name, version := range s.installed {
		out = append(out, Component{Name: name, Version: version})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Persist writes the whole map to a temp file and renames it over the state
// file, so a crash leaves the previous state intact.
func (s *Store) Persist() error {
	if s.dryRun {
		return nil
	}

	s.lastRun = s.now()
	f := File{
		Version:   FormatVersion,
		LastRun:   s.lastRun,
		RunID:     s.runID,
		Installed: s.installed,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStateWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStateWrite, err)
	}
	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrStateWrite, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp: %w", ErrStateWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp: %w", ErrStateWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %w", ErrStateWrite, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrStateWrite, s.path, err)
	}
	return nil
}
