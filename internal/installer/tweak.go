package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	SysctlConf       = "/etc/sysctl.d/99-devsetup.conf"
	procSwappiness   = "/proc/sys/vm/swappiness"
	shellBlockStart  = "# >>> devsetup >>>"
	shellBlockEnd    = "# <<< devsetup <<<"
	appliedVersion   = "applied"
	swappinessFormat = "vm.swappiness = %d\n"
)

// Swappiness persists vm.swappiness and applies it immediately.
type Swappiness struct {
	Value int
	// ConfPath and ProcPath default to the system locations.
	ConfPath string
	ProcPath string
}

func (s *Swappiness) Name() string { return "swappiness" }

func (s *Swappiness) Install(ctx context.Context, env *Env) Result {
	conf := s.ConfPath
	if conf == "" {
		conf = SysctlConf
	}
	detector := Detector{Check: func(context.Context, *Env) (bool, string) {
		return s.current() == s.Value && s.persisted(conf), appliedVersion
	}}
	plan := fmt.Sprintf("set vm.swappiness=%d in %s", s.Value, conf)
	return execute(ctx, env, s.Name(), detector, plan, func(ctx context.Context, env *Env, res *Result) (string, error) {
		if err := env.WriteFile(ctx, conf, []byte(fmt.Sprintf(swappinessFormat, s.Value)), 0o644); err != nil {
			return "", err
		}
		if _, err := env.Exec(ctx, Sudo("sysctl", "--system")); err != nil {
			return "", err
		}
		return appliedVersion, nil
	})
}

func (s *Swappiness) current() int {
	path := s.ProcPath
	if path == "" {
		path = procSwappiness
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1
	}
	return v
}

func (s *Swappiness) persisted(conf string) bool {
	data, err := os.ReadFile(conf)
	if err != nil {
		return false
	}
	return string(data) == fmt.Sprintf(swappinessFormat, s.Value)
}

// Firewall installs ufw, opens the allowed services and enables it.
type Firewall struct {
	Allow []string
}

func (f *Firewall) Name() string { return "firewall" }

func (f *Firewall) Install(ctx context.Context, env *Env) Result {
	plan := "enable ufw allowing " + strings.Join(f.Allow, ", ")
	return execute(ctx, env, f.Name(), Detector{}, plan, func(ctx context.Context, env *Env, res *Result) (string, error) {
		if _, err := env.lookPath("ufw"); err != nil {
			if err := env.AptInstall(ctx, "ufw"); err != nil {
				return "", err
			}
		}
		for _, rule := range f.Allow {
			if _, err := env.Exec(ctx, Sudo("ufw", "allow", rule)); err != nil {
				return "", err
			}
		}
		if _, err := env.Exec(ctx, Sudo("ufw", "--force", "enable")); err != nil {
			return "", err
		}
		return appliedVersion, nil
	})
}

// ShellConfig maintains a marked block of aliases and PATH entries in a
// shell rc file. Content outside the block is left alone.
type ShellConfig struct {
	RCFile   string
	Aliases  map[string]string
	PathDirs []string
}

func (s *ShellConfig) Name() string { return "shell-config" }

func (s *ShellConfig) Install(ctx context.Context, env *Env) Result {
	rc := ExpandHome(s.RCFile)
	block := s.block(env)
	detector := Detector{Check: func(context.Context, *Env) (bool, string) {
		data, err := os.ReadFile(rc)
		return err == nil && bytes.Contains(data, []byte(block)), appliedVersion
	}}
	return execute(ctx, env, s.Name(), detector, "update "+rc, func(ctx context.Context, env *Env, res *Result) (string, error) {
		current, err := os.ReadFile(rc)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", rc, err)
		}
		if err := env.WriteFile(ctx, rc, []byte(ReplaceBlock(string(current), block)), 0o644); err != nil {
			return "", err
		}
		return appliedVersion, nil
	})
}

func (s *ShellConfig) block(env *Env) string {
	var b strings.Builder
	b.WriteString(shellBlockStart + "\n")
	for _, dir := range s.PathDirs {
		dir = env.Expand(dir, "")
		fmt.Fprintf(&b, "case \":$PATH:\" in *\":%s:\"*) ;; *) export PATH=\"%s:$PATH\" ;; esac\n", dir, dir)
	}
	names := make([]string, 0, len(s.Aliases))
	for name := range s.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "alias %s='%s'\n", name, strings.ReplaceAll(s.Aliases[name], "'", `'\''`))
	}
	b.WriteString(shellBlockEnd + "\n")
	return b.String()
}

// ReplaceBlock swaps the managed block in content for block, appending it
// when content has none.
func ReplaceBlock(content, block string) string {
	start := strings.Index(content, shellBlockStart)
	if start >= 0 {
		if rel := strings.Index(content[start:], shellBlockEnd); rel >= 0 {
			end := start + rel + len(shellBlockEnd)
			if end < len(content) && content[end] == '\n' {
				end++
			}
			return content[:start] + block + content[end:]
		}
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + block
}
