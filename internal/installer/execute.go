package installer

import (
	"context"
	"fmt"
	"time"
)

type applyFunc func(ctx context.Context, env *Env, res *Result) (string, error)

// execute runs the checks every kind shares before apply:
//
//   - recorded in state: skipped, refreshing the version from the detector
//   - found by the detector: recorded as present
//   - dry-run: logged, marked in memory, would-install
//
// apply returns the installed version; "" becomes "unknown".
func execute(ctx context.Context, env *Env, name string, detector Detector, plan string, apply applyFunc) Result {
	start := time.Now()
	res := run(ctx, env, name, detector, plan, apply)
	res.Duration = time.Since(start)
	if res.Err != nil && res.Error == "" {
		res.Error = res.Err.Error()
	}
	return res
}

func run(ctx context.Context, env *Env, name string, detector Detector, plan string, apply applyFunc) Result {
	res := Result{Component: name}

	if recorded, ok := env.State.Version(name); ok {
		res.Status = StatusSkipped
		res.Version = recorded
		if found, v := detector.Detect(ctx, env); found && v != "unknown" && v != recorded {
			if err := env.State.MarkInstalled(name, v); err != nil {
				env.NonCritical(&res, "refresh recorded version", err)
			} else {
				res.Version = v
				res.Notes = append(res.Notes, fmt.Sprintf("version refreshed from %s", recorded))
			}
		}
		env.Logger.Infof("%s already installed (%s)", name, res.Version)
		return res
	}

	if found, v := detector.Detect(ctx, env); found {
		if err := env.State.MarkInstalled(name, v); err != nil {
			return failed(name, err, nil)
		}
		env.Logger.Infof("%s found on the system (%s)", name, v)
		res.Status = StatusPresent
		res.Version = v
		return res
	}

	if env.DryRun {
		env.Logger.Infof("[dry-run] would install %s: %s", name, plan)
		if err := env.State.MarkInstalled(name, "unknown"); err != nil {
			return failed(name, err, nil)
		}
		res.Status = StatusWouldInstall
		res.Notes = append(res.Notes, plan)
		return res
	}

	env.Logger.Infof("installing %s", name)
	version, err := apply(ctx, env, &res)
	if err != nil {
		env.Logger.Errorf("%s failed: %v", name, err)
		return failed(name, err, res.Notes)
	}
	if version == "" {
		version = "unknown"
	}
	if err := env.State.MarkInstalled(name, version); err != nil {
		env.Logger.Errorf("%s installed but not recorded: %v", name, err)
		return failed(name, err, res.Notes)
	}
	env.Logger.Infof("%s installed (%s)", name, version)
	res.Status = StatusInstalled
	res.Version = version
	return res
}
