package installer

import (
	"context"
	"strings"
)

// Commands installs a component by running a fixed list of commands, e.g.
// a global npm package or git settings.
type Commands struct {
	Component string
	Steps     []Command
	// Version is recorded when the detector cannot report one.
	Version  string
	Detector Detector
}

func (c *Commands) Name() string { return c.Component }

func (c *Commands) Install(ctx context.Context, env *Env) Result {
	steps := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		steps[i] = s.String()
	}
	return execute(ctx, env, c.Component, c.Detector, strings.Join(steps, "; "), func(ctx context.Context, env *Env, res *Result) (string, error) {
		for _, step := range c.Steps {
			step.Args = env.expandAll(step.Args, "")
			if _, err := env.Exec(ctx, step); err != nil {
				return "", err
			}
		}
		if found, v := c.Detector.Detect(ctx, env); found && v != "unknown" {
			return v, nil
		}
		return c.Version, nil
	})
}
