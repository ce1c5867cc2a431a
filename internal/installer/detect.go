package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Detector detects a component that is already on the machine.
type Detector struct {
	// Command is looked up on PATH.
	Command     string
	VersionArgs []string
	// Path, when set, must exist. A leading ~/ expands to the user's home.
	Path string
	// Check replaces the built-in detection.
	Check func(ctx context.Context, env *Env) (bool, string)
}

// Detect reports whether the component is present and its version.
func (p Detector) Detect(ctx context.Context, env *Env) (bool, string) {
	if p.Check != nil {
		return p.Check(ctx, env)
	}
	if p.Path != "" {
		if _, err := os.Stat(ExpandHome(p.Path)); err != nil {
			return false, ""
		}
		if p.Command == "" {
			return true, "unknown"
		}
	}
	if p.Command == "" {
		return false, ""
	}

	bin, err := env.lookPath(p.Command)
	if err != nil {
		if p.Path != "" {
			return true, "unknown"
		}
		return false, ""
	}
	version, err := detectVersion(ctx, env.Runner, bin, p.VersionArgs)
	if err != nil {
		env.Logger.Debugf("version check for %s failed: %v", p.Command, err)
	}
	return true, version
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
