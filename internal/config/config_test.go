package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "developer" {
		t.Fatalf("expected default profile developer, got %q", cfg.Profile)
	}
	if cfg.Downloads.Retries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Downloads.Retries)
	}
	if cfg.Tweaks.SwappinessValue() != 10 {
		t.Fatalf("expected swappiness 10, got %d", cfg.Tweaks.SwappinessValue())
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
profile: Minimal
components: [" Helm ", kubectl]
exclude: [git]
dry_run: true
versions:
  Golang: "1.22.5"
downloads:
  retries: 0
  connections: 8
tweaks:
  swappiness: 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "minimal" {
		t.Fatalf("expected profile minimal, got %q", cfg.Profile)
	}
	if !reflect.DeepEqual(cfg.Components, []string{"helm", "kubectl"}) {
		t.Fatalf("unexpected components %v", cfg.Components)
	}
	if !cfg.DryRun {
		t.Fatal("expected dry_run to be true")
	}
	if cfg.VersionFor("golang") != "1.22.5" {
		t.Fatalf("expected golang version override, got %q", cfg.VersionFor("golang"))
	}
	if cfg.Downloads.Retries != 3 {
		t.Fatalf("zero retries should fall back to default, got %d", cfg.Downloads.Retries)
	}
	if cfg.Downloads.Connections != 8 {
		t.Fatalf("expected 8 connections, got %d", cfg.Downloads.Connections)
	}
	if cfg.Tweaks.SwappinessValue() != 0 {
		t.Fatalf("explicit swappiness 0 should be kept, got %d", cfg.Tweaks.SwappinessValue())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("components: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestSelectComponents(t *testing.T) {
	cfg := Config{
		Components: []string{"helm", "custom-tool"},
		Exclude:    []string{"docker"},
	}
	order := []string{"git", "docker", "kubectl", "helm"}

	got := cfg.SelectComponents([]string{"git", "docker"}, order)
	want := []string{"git", "helm", "custom-tool"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectComponents = %v, want %v", got, want)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "profile: developer") {
		t.Fatalf("expected profile in yaml, got:\n%s", data)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Downloads.Connections != cfg.Downloads.Connections {
		t.Fatalf("connections changed across round trip: %d != %d", loaded.Downloads.Connections, cfg.Downloads.Connections)
	}
}

func TestMirrorEnabled(t *testing.T) {
	if (MirrorConfig{}).Enabled() {
		t.Fatal("empty mirror should be disabled")
	}
	if !(MirrorConfig{Bucket: "artifacts"}).Enabled() {
		t.Fatal("mirror with bucket should be enabled")
	}
}

func TestMirrorCredentialsFromEnv(t *testing.T) {
	env := map[string]string{"MIRROR_KEY": "AKIDEXAMPLE", "MIRROR_SECRET": "s3cr3t"}
	getenv := func(k string) string { return env[k] }

	m := MirrorConfig{Bucket: "artifacts", AccessKeyEnv: "MIRROR_KEY", SecretKeyEnv: "MIRROR_SECRET"}
	id, secret := m.Credentials(getenv)
	if id != "AKIDEXAMPLE" || secret != "s3cr3t" {
		t.Fatalf("Credentials = %q, %q", id, secret)
	}

	delete(env, "MIRROR_SECRET")
	if id, secret := m.Credentials(getenv); id != "" || secret != "" {
		t.Fatalf("unset secret should drop the pair, got %q, %q", id, secret)
	}
	if id, _ := (MirrorConfig{AccessKeyEnv: "MIRROR_KEY"}).Credentials(getenv); id != "" {
		t.Fatalf("missing secret_key_env should drop the pair, got %q", id)
	}
}

func TestMirrorCredentialEnvNamesLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devsetup.yaml")
	data := "downloads:\n  mirror:\n    bucket: artifacts\n    endpoint: http://minio.lan:9000\n    access_key_env: MIRROR_KEY\n    secret_key_env: MIRROR_SECRET\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Downloads.Mirror.AccessKeyEnv != "MIRROR_KEY" || cfg.Downloads.Mirror.SecretKeyEnv != "MIRROR_SECRET" {
		t.Fatalf("credential env names not loaded: %+v", cfg.Downloads.Mirror)
	}
}
