package installer

import (
	"context"
	"path/filepath"
)

// Script downloads an installer script and runs it with a shell.
type Script struct {
	Component string
	URL       string
	Checksum  string
	// Shell defaults to sh.
	Shell      string
	Args       []string
	Env        []string
	Privileged bool
	Detector   Detector
}

func (s *Script) Name() string { return s.Component }

func (s *Script) Install(ctx context.Context, env *Env) Result {
	return execute(ctx, env, s.Component, s.Detector, "run installer script "+s.URL, func(ctx context.Context, env *Env, res *Result) (string, error) {
		work, cleanup, err := env.workDir(s.Component)
		if err != nil {
			return "", err
		}
		defer cleanup()

		script := filepath.Join(work, "install.sh")
		if err := env.Cache.Fetch(ctx, s.URL, script, s.Checksum); err != nil {
			return "", err
		}

		shell := s.Shell
		if shell == "" {
			shell = "sh"
		}
		cmd := Command{
			Name:       shell,
			Args:       append([]string{script}, env.expandAll(s.Args, "")...),
			Env:        env.expandAll(s.Env, ""),
			Dir:        work,
			Privileged: s.Privileged,
		}
		if _, err := env.Exec(ctx, cmd); err != nil {
			return "", err
		}

		if found, v := s.Detector.Detect(ctx, env); found {
			return v, nil
		}
		return "", nil
	})
}
