package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"devsetup/internal/cache"
	"devsetup/internal/checksum"
	"devsetup/internal/deps"
	"devsetup/internal/logx"
	"devsetup/internal/state"
)

// SelfTestResult is the outcome of one self-test step.
type SelfTestResult struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the step passed.
func (r SelfTestResult) OK() bool { return r.Error == "" }

// SelfTest exercises the checksum verifier, download cache, state store and
// resolver inside a scratch directory. It touches neither the network nor
// the real state.
func SelfTest(ctx context.Context, logger *logx.Logger) ([]SelfTestResult, error) {
	dir, err := os.MkdirTemp("", "devsetup-selftest-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	steps := []struct {
		name string
		run  func(context.Context, string, *logx.Logger) error
	}{
		{"checksum", selfTestChecksum},
		{"cache", selfTestCache},
		{"state", selfTestState},
		{"resolver", selfTestResolver},
	}
	var results []SelfTestResult
	for _, step := range steps {
		res := SelfTestResult{Name: step.name}
		if err := step.run(ctx, filepath.Join(dir, step.name), logger); err != nil {
			res.Error = err.Error()
			logger.Errorf("self-test %s: %v", step.name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

var selfTestPayload = []byte("devsetup self-test payload\n")

func selfTestChecksum(_ context.Context, dir string, logger *logx.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file := filepath.Join(dir, "payload")
	if err := os.WriteFile(file, selfTestPayload, 0o644); err != nil {
		return err
	}
	sum, err := checksum.Compute(file, "sha256")
	if err != nil {
		return err
	}
	v := checksum.Verifier{Logger: logger}
	if err := v.Verify(file, checksum.Format("sha256", sum)); err != nil {
		return fmt.Errorf("round trip: %w", err)
	}
	flipped := []byte(sum)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	if err := v.Verify(file, checksum.Format("sha256", string(flipped))); !errors.Is(err, checksum.ErrChecksumMismatch) {
		return fmt.Errorf("flipped digest accepted (err=%v)", err)
	}
	return nil
}

// payloadDownloader serves selfTestPayload for any URL.
type payloadDownloader struct{ calls int }

func (p *payloadDownloader) Download(_ context.Context, _ string, dest string) error {
	p.calls++
	return os.WriteFile(dest, selfTestPayload, 0o644)
}

func selfTestCache(ctx context.Context, dir string, logger *logx.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, selfTestPayload, 0o644); err != nil {
		return err
	}
	sum, err := checksum.Compute(src, "sha256")
	if err != nil {
		return err
	}
	expected := checksum.Format("sha256", sum)

	dl := &payloadDownloader{}
	c := cache.New(filepath.Join(dir, "cache"), dl, logger)
	const url = "https://selftest.invalid/payload.bin"
	for i := 0; i < 2; i++ {
		dest := filepath.Join(dir, fmt.Sprintf("out-%d", i))
		if err := c.Fetch(ctx, url, dest, expected); err != nil {
			return fmt.Errorf("fetch %d: %w", i+1, err)
		}
	}
	if dl.calls != 1 {
		return fmt.Errorf("expected one download, got %d", dl.calls)
	}
	return nil
}

func selfTestState(_ context.Context, dir string, logger *logx.Logger) error {
	opts := state.Options{
		Path:   filepath.Join(dir, "state.json"),
		TxLog:  state.NewTxLog(filepath.Join(dir, "transactions.log"), false),
		Logger: logger,
	}
	s := state.New(opts)
	for i := 0; i < 2; i++ {
		if err := s.MarkInstalled("selftest", "1.0.0"); err != nil {
			return err
		}
	}
	reloaded := state.New(opts)
	if err := reloaded.Load(); err != nil {
		return err
	}
	if v, ok := reloaded.Version("selftest"); !ok || v != "1.0.0" {
		return fmt.Errorf("reloaded state has %q (present=%t)", v, ok)
	}
	if n := len(reloaded.Installed()); n != 1 {
		return fmt.Errorf("expected 1 entry after repeated marks, got %d", n)
	}
	return nil
}

// markingInstaller records every component it is asked to install.
type markingInstaller struct {
	state *state.Store
	order []string
}

func (m *markingInstaller) Has(string) bool { return true }

func (m *markingInstaller) InstallComponent(_ context.Context, name string) error {
	m.order = append(m.order, name)
	return m.state.MarkInstalled(name, "1.0.0")
}

func selfTestResolver(ctx context.Context, _ string, logger *logx.Logger) error {
	s := state.New(state.Options{DryRun: true, Logger: logger})
	inst := &markingInstaller{state: s}
	r := &deps.Resolver{Table: deps.Table{"helm": "kubectl"}, State: s, Installer: inst, Logger: logger}
	if err := r.Resolve(ctx, "helm"); err != nil {
		return err
	}
	if len(inst.order) != 1 || inst.order[0] != "kubectl" {
		return fmt.Errorf("expected kubectl to be installed first, got %v", inst.order)
	}

	cyclic := &deps.Resolver{Table: deps.Table{"a": "a"}, State: s, Installer: inst, Logger: logger}
	if err := cyclic.Resolve(ctx, "a"); !errors.Is(err, deps.ErrCyclicDependency) {
		return fmt.Errorf("self-dependency not rejected (err=%v)", err)
	}
	return nil
}
