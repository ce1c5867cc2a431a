package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// AptRepo is a third-party apt source with its signing key.
type AptRepo struct {
	KeyURL string
	// Keyring is where the key is stored, e.g. /etc/apt/keyrings/docker.asc.
	Keyring string
	// Source is the sources.list line. Placeholders are expanded and
	// {keyring} is replaced with Keyring.
	Source   string
	ListFile string
}

// Apt installs distribution packages, optionally from an extra repository.
type Apt struct {
	Component string
	Packages  []string
	Repo      *AptRepo
	// Services are enabled and started after install. Failures are warnings.
	Services []string
	// After runs once the packages are in. Failures are warnings.
	After    []Command
	Detector Detector
}

func (a *Apt) Name() string { return a.Component }

func (a *Apt) Install(ctx context.Context, env *Env) Result {
	plan := "apt-get install " + strings.Join(a.Packages, " ")
	if a.Repo != nil {
		plan = fmt.Sprintf("add apt source %s, %s", a.Repo.ListFile, plan)
	}
	return execute(ctx, env, a.Component, a.Detector, plan, func(ctx context.Context, env *Env, res *Result) (string, error) {
		if a.Repo != nil {
			if err := a.addRepo(ctx, env); err != nil {
				return "", err
			}
		}
		if err := env.AptInstall(ctx, a.Packages...); err != nil {
			return "", err
		}
		for _, svc := range a.Services {
			_, err := env.Exec(ctx, Sudo("systemctl", "enable", "--now", svc))
			env.NonCritical(res, "enable service "+svc, err)
		}
		for _, c := range a.After {
			c.Args = env.expandAll(c.Args, "")
			_, err := env.Exec(ctx, c)
			env.NonCritical(res, c.String(), err)
		}
		return env.packageVersion(ctx, a.Packages[0]), nil
	})
}

func (a *Apt) addRepo(ctx context.Context, env *Env) error {
	work, cleanup, err := env.workDir(a.Component)
	if err != nil {
		return err
	}
	defer cleanup()

	keyURL := env.Expand(a.Repo.KeyURL, "")
	keyFile := filepath.Join(work, "signing-key")
	if err := env.Cache.Fetch(ctx, keyURL, keyFile, ""); err != nil {
		return fmt.Errorf("fetch signing key: %w", err)
	}
	key, err := readFile(keyFile)
	if err != nil {
		return err
	}
	if err := env.WriteFile(ctx, a.Repo.Keyring, key, 0o644); err != nil {
		return fmt.Errorf("install signing key: %w", err)
	}

	source := strings.ReplaceAll(env.Expand(a.Repo.Source, ""), "{keyring}", a.Repo.Keyring)
	if err := env.WriteFile(ctx, a.Repo.ListFile, []byte(source+"\n"), 0o644); err != nil {
		return fmt.Errorf("install apt source: %w", err)
	}
	env.aptUpdated = false
	return nil
}

// AptInstall installs packages non-interactively, refreshing the package
// index once per run.
func (e *Env) AptInstall(ctx context.Context, packages ...string) error {
	if !e.aptUpdated {
		if _, err := e.Exec(ctx, Command{
			Name:       "apt-get",
			Args:       []string{"update"},
			Env:        []string{"DEBIAN_FRONTEND=noninteractive"},
			Privileged: true,
		}); err != nil {
			return fmt.Errorf("refresh package index: %w", err)
		}
		e.aptUpdated = true
	}
	args := append([]string{"install", "-y", "--no-install-recommends"}, packages...)
	_, err := e.Exec(ctx, Command{
		Name:       "apt-get",
		Args:       args,
		Env:        []string{"DEBIAN_FRONTEND=noninteractive"},
		Privileged: true,
	})
	return err
}

func (e *Env) packageVersion(ctx context.Context, pkg string) string {
	res, err := e.Runner.Run(ctx, "dpkg-query", []string{"-W", "-f=${Version}", pkg}, RunOptions{})
	if err != nil {
		return "unknown"
	}
	return ExtractVersion(string(res.Stdout))
}
