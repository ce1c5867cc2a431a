package installer

import (
	"context"
	"strings"
)

// Deb installs a standalone .deb package through apt so its dependencies
// are pulled in.
type Deb struct {
	Component      string
	URL            string
	DefaultVersion string
	Checksums      map[string]string
	Package        string
	Detector       Detector
}

func (d *Deb) Name() string { return d.Component }

func (d *Deb) Install(ctx context.Context, env *Env) Result {
	version := d.DefaultVersion
	if override := env.versionOverride(d.Component); override != "" && override != "latest" {
		version = override
	}
	rawURL := env.Expand(d.URL, version)
	return execute(ctx, env, d.Component, d.Detector, "install package "+rawURL, func(ctx context.Context, env *Env, res *Result) (string, error) {
		work, cleanup, err := env.workDir(d.Component)
		if err != nil {
			return "", err
		}
		defer cleanup()

		pkg, err := artifactPath(work, rawURL)
		if err != nil {
			return "", err
		}
		if !strings.HasSuffix(pkg, ".deb") {
			pkg += ".deb"
		}
		sum := ""
		if version == d.DefaultVersion {
			sum = d.Checksums[env.Arch.GOARCH]
		}
		if err := env.Cache.Fetch(ctx, rawURL, pkg, sum); err != nil {
			return "", err
		}
		if err := env.AptInstall(ctx, pkg); err != nil {
			return "", err
		}
		if d.Package != "" {
			if v := env.packageVersion(ctx, d.Package); v != "unknown" {
				return v, nil
			}
		}
		return version, nil
	})
}
