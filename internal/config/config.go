package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures which components a workstation should receive and how the
// run behaves.
type Config struct {
	Version            int               `yaml:"version"`
	Profile            string            `yaml:"profile,omitempty"`
	Components         []string          `yaml:"components,omitempty"`
	Exclude            []string          `yaml:"exclude,omitempty"`
	DryRun             bool              `yaml:"dry_run"`
	AutoApprove        bool              `yaml:"auto_approve"`
	StrictDependencies bool              `yaml:"strict_dependencies"`
	InstallPrefix      string            `yaml:"install_prefix,omitempty"`
	Versions           map[string]string `yaml:"versions,omitempty"`
	Minimums           map[string]string `yaml:"minimums,omitempty"`
	Downloads          DownloadsConfig   `yaml:"downloads"`
	Tweaks             TweaksConfig      `yaml:"tweaks"`
	DiskMinFreeMB      int64             `yaml:"disk_min_free_mb"`
	ConnectivityURL    string            `yaml:"connectivity_url,omitempty"`
}

// DownloadsConfig tunes the artifact downloader.
type DownloadsConfig struct {
	Retries        int          `yaml:"retries"`
	RetryWaitSec   int          `yaml:"retry_wait_s"`
	Connections    int          `yaml:"connections"`
	TimeoutSec     int          `yaml:"timeout_s"`
	GitHubTokenEnv string       `yaml:"github_token_env,omitempty"`
	Mirror         MirrorConfig `yaml:"mirror"`
}

// MirrorConfig points the download cache at a shared S3 bucket. AccessKeyEnv
// and SecretKeyEnv name environment variables holding static credentials for
// buckets outside the default AWS credential chain (MinIO, Ceph, etc).
type MirrorConfig struct {
	Bucket       string `yaml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	AccessKeyEnv string `yaml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty"`
}

// Enabled reports whether a mirror bucket is configured.
func (m MirrorConfig) Enabled() bool {
	return strings.TrimSpace(m.Bucket) != ""
}

// Credentials resolves the static key pair through getenv. Both values are
// empty unless both variables are named and set.
func (m MirrorConfig) Credentials(getenv func(string) string) (accessKey, secretKey string) {
	idEnv, secretEnv := strings.TrimSpace(m.AccessKeyEnv), strings.TrimSpace(m.SecretKeyEnv)
	if idEnv == "" || secretEnv == "" {
		return "", ""
	}
	accessKey, secretKey = getenv(idEnv), getenv(secretEnv)
	if accessKey == "" || secretKey == "" {
		return "", ""
	}
	return accessKey, secretKey
}

// TweaksConfig parameterises the system tweak components.
type TweaksConfig struct {
	Swappiness    *int              `yaml:"swappiness,omitempty"`
	FirewallAllow []string          `yaml:"firewall_allow,omitempty"`
	ShellRC       string            `yaml:"shell_rc,omitempty"`
	ShellAliases  map[string]string `yaml:"shell_aliases,omitempty"`
}

// SwappinessValue returns the effective vm.swappiness applying defaults.
func (t TweaksConfig) SwappinessValue() int {
	if t.Swappiness == nil {
		return 10
	}
	return *t.Swappiness
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Profile: "developer",
		Downloads: DownloadsConfig{
			Retries:        3,
			RetryWaitSec:   2,
			Connections:    4,
			TimeoutSec:     600,
			GitHubTokenEnv: "GITHUB_TOKEN",
		},
		Tweaks: TweaksConfig{
			Swappiness:    intPtr(10),
			FirewallAllow: []string{"OpenSSH"},
			ShellRC:       "~/.bashrc",
			ShellAliases: map[string]string{
				"ll": "ls -alF",
				"gs": "git status",
			},
		},
		DiskMinFreeMB:   2048,
		ConnectivityURL: "https://deb.debian.org",
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Downloads.Retries <= 0 {
		c.Downloads.Retries = defaults.Downloads.Retries
	}
	if c.Downloads.RetryWaitSec < 0 {
		c.Downloads.RetryWaitSec = defaults.Downloads.RetryWaitSec
	}
	if c.Downloads.Connections <= 0 {
		c.Downloads.Connections = defaults.Downloads.Connections
	}
	if c.Downloads.TimeoutSec <= 0 {
		c.Downloads.TimeoutSec = defaults.Downloads.TimeoutSec
	}
	if strings.TrimSpace(c.Downloads.GitHubTokenEnv) == "" {
		c.Downloads.GitHubTokenEnv = defaults.Downloads.GitHubTokenEnv
	}
	if c.Tweaks.Swappiness == nil {
		c.Tweaks.Swappiness = intPtr(defaults.Tweaks.SwappinessValue())
	}
	if strings.TrimSpace(c.Tweaks.ShellRC) == "" {
		c.Tweaks.ShellRC = defaults.Tweaks.ShellRC
	}
	if c.DiskMinFreeMB < 0 {
		c.DiskMinFreeMB = 0
	}
	c.Versions = normalizeKeys(c.Versions)
	c.Minimums = normalizeKeys(c.Minimums)
	c.Components = normalizeNames(c.Components)
	c.Exclude = normalizeNames(c.Exclude)
	c.Profile = strings.ToLower(strings.TrimSpace(c.Profile))
}

// VersionFor returns the pinned version for a component, or "".
func (c Config) VersionFor(component string) string {
	return strings.TrimSpace(c.Versions[strings.ToLower(component)])
}

// MinimumFor returns the minimum acceptable version for a component, or "".
func (c Config) MinimumFor(component string) string {
	return strings.TrimSpace(c.Minimums[strings.ToLower(component)])
}

// SelectComponents resolves the final component list: the members of the
// configured profile plus explicitly listed components, minus exclusions,
// sorted by the catalog order. Names absent from order are appended in the
// order they were listed.
func (c Config) SelectComponents(profileMembers []string, order []string) []string {
	wanted := make(map[string]bool)
	var listed []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || wanted[name] {
			return
		}
		wanted[name] = true
		listed = append(listed, name)
	}
	for _, name := range profileMembers {
		add(name)
	}
	for _, name := range c.Components {
		add(name)
	}
	for _, name := range c.Exclude {
		delete(wanted, name)
	}

	var out []string
	seen := make(map[string]bool)
	for _, name := range order {
		if wanted[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range listed {
		if wanted[name] && !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func normalizeKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
