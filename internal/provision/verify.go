package provision

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/mod/semver"

	"devsetup/internal/state"
)

// CheckStatus is the verdict for one installed component.
type CheckStatus string

const (
	CheckOK       CheckStatus = "ok"
	CheckOutdated CheckStatus = "outdated"
	CheckMissing  CheckStatus = "missing"
	// CheckRecorded means the component has no detector; only the state
	// entry vouches for it.
	CheckRecorded CheckStatus = "recorded"
)

// Check is one line of verify output.
type Check struct {
	Component string      `json:"component"`
	Recorded  string      `json:"recorded"`
	Detected  string      `json:"detected,omitempty"`
	Minimum   string      `json:"minimum,omitempty"`
	Status    CheckStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
}

// Verify re-checks every recorded component and compares the result with
// the configured minimum versions.
func (o *Orchestrator) Verify(ctx context.Context) ([]Check, error) {
	if err := o.state.Load(); err != nil {
		if !errors.Is(err, state.ErrStateCorrupt) {
			return nil, err
		}
		o.logger.Warnf("%v", err)
	}
	o.extendPath()

	var checks []Check
	for _, comp := range o.state.Installed() {
		c := Check{Component: comp.Name, Recorded: comp.Version, Minimum: o.cfg.MinimumFor(comp.Name)}

		detector, ok := o.opts.Detectors[comp.Name]
		if !ok || (detector.Command == "" && detector.Path == "" && detector.Check == nil) {
			c.Status = CheckRecorded
			checks = append(checks, c)
			continue
		}
		found, version := detector.Detect(ctx, o.env)
		if !found {
			c.Status = CheckMissing
			c.Detail = "recorded as installed but not found"
			checks = append(checks, c)
			continue
		}
		c.Detected = version
		c.Status = CheckOK
		if c.Minimum != "" {
			switch cmp, comparable := compareVersions(version, c.Minimum); {
			case !comparable:
				c.Detail = "version cannot be compared with the minimum"
			case cmp < 0:
				c.Status = CheckOutdated
				c.Detail = "below minimum " + c.Minimum
			}
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// compareVersions compares dotted versions with semver rules.
func compareVersions(version, minimum string) (int, bool) {
	v, m := canonical(version), canonical(minimum)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return 0, false
	}
	return semver.Compare(v, m), true
}

func canonical(version string) string {
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}
