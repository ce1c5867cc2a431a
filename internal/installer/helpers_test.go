package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/platform"
)

type fakeResponse struct {
	out string
	err error
}

// fakeRunner records every command line and answers from a prefix table.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]fakeResponse
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string]fakeResponse{}}
}

func (f *fakeRunner) on(prefix, out string, err error) {
	f.responses[prefix] = fakeResponse{out: out, err: err}
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string, _ RunOptions) (RunResult, error) {
	line := strings.TrimSpace(command + " " + strings.Join(args, " "))
	f.mu.Lock()
	f.calls = append(f.calls, line)
	f.mu.Unlock()

	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return RunResult{}, nil
	}
	resp := f.responses[best]
	return RunResult{Stdout: []byte(resp.out)}, resp.err
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRunner) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeState struct {
	versions map[string]string
	backups  []string
	failMark error
}

func newFakeState() *fakeState { return &fakeState{versions: map[string]string{}} }

func (s *fakeState) IsInstalled(name string) bool {
	_, ok := s.versions[name]
	return ok
}

func (s *fakeState) Version(name string) (string, bool) {
	v, ok := s.versions[name]
	return v, ok
}

func (s *fakeState) MarkInstalled(name, version string) error {
	if s.failMark != nil {
		return s.failMark
	}
	s.versions[name] = version
	return nil
}

func (s *fakeState) Backup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	s.backups = append(s.backups, path)
	return path + ".bak", nil
}

// fakeFetcher serves artifact bodies by URL.
type fakeFetcher struct {
	bodies map[string][]byte
	calls  []string
	sums   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest, checksum string) error {
	f.calls = append(f.calls, url)
	f.sums = append(f.sums, checksum)
	body, ok := f.bodies[url]
	if !ok {
		return fmt.Errorf("%s: 404", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, body, 0o644)
}

type fakeReleases struct {
	latest string
	err    error
}

func (f fakeReleases) Latest(context.Context, string) (string, error) { return f.latest, f.err }

type harness struct {
	env     *Env
	runner  *fakeRunner
	state   *fakeState
	fetcher *fakeFetcher
	memory  *logx.Memory
	onPath  map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	logger, memory := logx.NewMemory()
	h := &harness{
		runner:  newFakeRunner(),
		state:   newFakeState(),
		fetcher: &fakeFetcher{bodies: map[string][]byte{}},
		memory:  memory,
		onPath:  map[string]string{},
	}
	h.env = &Env{
		State:   h.state,
		Cache:   h.fetcher,
		Runner:  h.runner,
		Logger:  logger,
		Layout:  paths.ForRoot(root),
		Arch:    platform.Arch{GOARCH: "amd64", Uname: "x86_64", Deb: "amd64"},
		OS:      platform.Info{ID: "debian", Codename: "bookworm"},
		Sudo:    true,
		WorkDir: filepath.Join(root, "work"),
		LookPath: func(name string) (string, error) {
			if p, ok := h.onPath[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
	}
	return h
}
