package installer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Download installs a release artifact from the web.
type Download struct {
	Component string
	// URL may use the placeholders understood by Env.Expand.
	URL            string
	DefaultVersion string
	// LatestRepo is the GitHub owner/repo consulted when the version is
	// "latest".
	LatestRepo string
	// ArchNames overrides {arch} per GOARCH for vendors with their own
	// naming, e.g. "x64" for amd64.
	ArchNames map[string]string
	// Checksums pins "algorithm:hex" digests of DefaultVersion by GOARCH.
	// The key "*" matches every architecture.
	Checksums map[string]string
	// ChecksumURL points at a published sha256 file for other versions.
	ChecksumURL string
	Archive     Archive
	// Binaries are copied into the bin dir. With Tree set they are paths
	// inside the tree that get symlinked instead.
	Binaries []string
	// Tree, when set, keeps the whole extracted archive under <opt>/<Tree>.
	Tree string
	// Setup runs from the extract dir instead of copying binaries.
	Setup    []string
	Detector Detector
}

func (d *Download) Name() string { return d.Component }

func (d *Download) Install(ctx context.Context, env *Env) Result {
	planned := d.DefaultVersion
	if override := env.versionOverride(d.Component); override != "" {
		planned = override
	}
	if planned == "" {
		planned = "latest"
	}
	plan := "download " + d.expand(env, d.URL, planned)
	return execute(ctx, env, d.Component, d.Detector, plan, d.apply)
}

func (d *Download) apply(ctx context.Context, env *Env, res *Result) (string, error) {
	version, err := d.resolveVersion(ctx, env, res)
	if err != nil {
		return "", err
	}
	rawURL := d.expand(env, d.URL, version)
	sum, err := d.checksumFor(ctx, env, version, rawURL)
	if err != nil {
		return "", err
	}

	work, cleanup, err := env.workDir(d.Component)
	if err != nil {
		return "", err
	}
	defer cleanup()

	artifact, err := artifactPath(work, rawURL)
	if err != nil {
		return "", err
	}
	if err := env.Cache.Fetch(ctx, rawURL, artifact, sum); err != nil {
		return "", err
	}

	installed, err := d.place(ctx, env, work, artifact, version)
	if err != nil {
		return "", err
	}
	if installed != "" {
		if detected, err := detectVersion(ctx, env.Runner, installed, d.Detector.VersionArgs); err == nil && detected != "unknown" {
			return detected, nil
		}
	}
	return version, nil
}

// place puts the artifact where it belongs and returns the path of the
// main executable.
func (d *Download) place(ctx context.Context, env *Env, work, artifact, version string) (string, error) {
	if d.Archive == ArchiveNone {
		if len(d.Binaries) != 1 {
			return "", fmt.Errorf("plain download needs exactly one binary, have %d", len(d.Binaries))
		}
		dest := filepath.Join(env.Layout.BinDir, d.Binaries[0])
		if err := installBinary(artifact, dest); err != nil {
			return "", fmt.Errorf("install %s: %w", dest, err)
		}
		return dest, nil
	}

	extracted := filepath.Join(work, "extract")
	if err := Extract(d.Archive, artifact, extracted); err != nil {
		return "", err
	}

	switch {
	case len(d.Setup) > 0:
		args := env.expandAll(d.Setup, version)
		if _, err := env.Exec(ctx, Command{Name: args[0], Args: args[1:], Dir: extracted}); err != nil {
			return "", err
		}
		if len(d.Binaries) > 0 {
			return filepath.Join(env.Layout.BinDir, d.Binaries[0]), nil
		}
		return "", nil

	case d.Tree != "":
		root, err := treeRoot(extracted)
		if err != nil {
			return "", err
		}
		dest := filepath.Join(env.Layout.OptDir, d.Tree)
		if err := replaceTree(root, dest); err != nil {
			return "", err
		}
		var main string
		for _, bin := range d.Binaries {
			target := filepath.Join(dest, filepath.FromSlash(bin))
			link := filepath.Join(env.Layout.BinDir, path.Base(bin))
			if err := linkInto(target, link); err != nil {
				return "", fmt.Errorf("link %s: %w", link, err)
			}
			if main == "" {
				main = target
			}
		}
		return main, nil

	default:
		var main string
		for _, bin := range d.Binaries {
			src, err := findExecutable(extracted, bin)
			if err != nil {
				return "", err
			}
			dest := filepath.Join(env.Layout.BinDir, bin)
			if err := installBinary(src, dest); err != nil {
				return "", fmt.Errorf("install %s: %w", dest, err)
			}
			if main == "" {
				main = dest
			}
		}
		return main, nil
	}
}

// resolveVersion picks the configured override, the latest release, or the
// default, in that order. A failed latest lookup falls back to the default.
func (d *Download) resolveVersion(ctx context.Context, env *Env, res *Result) (string, error) {
	want := env.versionOverride(d.Component)
	if want == "" {
		want = d.DefaultVersion
	}
	if want != "" && want != "latest" {
		return want, nil
	}
	if d.LatestRepo == "" || env.Releases == nil {
		if d.DefaultVersion == "" {
			return "", fmt.Errorf("no version available for %s", d.Component)
		}
		return d.DefaultVersion, nil
	}

	latest, err := env.Releases.Latest(ctx, d.LatestRepo)
	if err == nil {
		return latest, nil
	}
	if d.DefaultVersion == "" {
		return "", fmt.Errorf("resolve latest %s: %w", d.LatestRepo, err)
	}
	env.NonCritical(res, "resolve latest release", err)
	return d.DefaultVersion, nil
}

// checksumFor prefers a pinned digest, then the vendor's published one.
// Without either the artifact is installed unverified.
func (d *Download) checksumFor(ctx context.Context, env *Env, version, rawURL string) (string, error) {
	if version == d.DefaultVersion {
		if sum, ok := d.Checksums[env.Arch.GOARCH]; ok {
			return sum, nil
		}
		if sum, ok := d.Checksums["*"]; ok {
			return sum, nil
		}
	}
	if d.ChecksumURL != "" {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("parse download url: %w", err)
		}
		return env.remoteChecksum(ctx, d.expand(env, d.ChecksumURL, version), path.Base(parsed.Path))
	}
	env.Logger.Warnf("%s %s has no pinned checksum; integrity is not verified", d.Component, version)
	return "", nil
}

func (d *Download) expand(env *Env, s, version string) string {
	if name, ok := d.ArchNames[env.Arch.GOARCH]; ok {
		s = strings.ReplaceAll(s, "{arch}", name)
	}
	return env.Expand(s, version)
}

func artifactPath(dir, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" || strings.ContainsAny(base, `\`) {
		return "", fmt.Errorf("infer artifact name from url: %s", rawURL)
	}
	return filepath.Join(dir, base), nil
}
