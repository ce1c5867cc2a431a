package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout captures the well-known locations used by a provisioning run.
type Layout struct {
	Home             string
	ConfigFile       string
	StateFile        string
	TransactionLog   string
	LockFile         string
	BackupsDir       string
	LogsDir          string
	CacheDir         string
	ReleaseCacheFile string
	Prefix           string
	BinDir           string
	OptDir           string
}

// Resolve determines the layout from the environment. configFlag, when not
// empty, overrides the default configuration file location.
func Resolve(configFlag string) (Layout, error) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("detect user home: %w", err)
	}

	home, err := envDir("DEVSETUP_HOME", xdgDir("XDG_STATE_HOME", userHome, ".local", "state"), "devsetup")
	if err != nil {
		return Layout{}, err
	}
	cache, err := envDir("DEVSETUP_CACHE_DIR", xdgDir("XDG_CACHE_HOME", userHome, ".cache"), filepath.Join("devsetup", "downloads"))
	if err != nil {
		return Layout{}, err
	}

	layout := newLayout(home, cache, filepath.Join(userHome, ".local"))
	layout.ConfigFile = filepath.Join(xdgDir("XDG_CONFIG_HOME", userHome, ".config"), "devsetup", "config.yaml")
	if configFlag != "" {
		abs, err := filepath.Abs(configFlag)
		if err != nil {
			return Layout{}, fmt.Errorf("resolve config path: %w", err)
		}
		layout.ConfigFile = abs
	}
	return layout, nil
}

// ForRoot lays every location out below root. Used by tests and self-test.
func ForRoot(root string) Layout {
	layout := newLayout(filepath.Join(root, "state"), filepath.Join(root, "cache"), filepath.Join(root, "prefix"))
	layout.ConfigFile = filepath.Join(root, "config.yaml")
	return layout
}

func newLayout(home, cacheDir, prefix string) Layout {
	l := Layout{
		Home:             home,
		StateFile:        filepath.Join(home, "state.json"),
		TransactionLog:   filepath.Join(home, "transactions.log"),
		LockFile:         filepath.Join(home, "devsetup.lock"),
		BackupsDir:       filepath.Join(home, "backups"),
		LogsDir:          filepath.Join(home, "logs"),
		ReleaseCacheFile: filepath.Join(home, "release_cache.json"),
		CacheDir:         cacheDir,
	}
	return l.WithPrefix(prefix)
}

// WithPrefix moves the install prefix (bin and opt directories).
func (l Layout) WithPrefix(prefix string) Layout {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return l
	}
	if strings.HasPrefix(prefix, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			prefix = filepath.Join(home, prefix[2:])
		}
	}
	l.Prefix = filepath.Clean(prefix)
	l.BinDir = filepath.Join(l.Prefix, "bin")
	l.OptDir = filepath.Join(l.Prefix, "opt")
	return l
}

// Ensure creates the state, log, backup, cache and prefix directories.
func (l Layout) Ensure() error {
	dirs := []string{l.Home, l.LogsDir, l.BackupsDir, l.CacheDir, l.BinDir, l.OptDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func xdgDir(envKey, userHome string, fallback ...string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" && filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(append([]string{userHome}, fallback...)...)
}

func envDir(envKey, base, leaf string) (string, error) {
	if override, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(override) != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", envKey, err)
		}
		return abs, nil
	}
	return filepath.Join(base, leaf), nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
