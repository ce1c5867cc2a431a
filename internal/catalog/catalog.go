// Package catalog lists every component the provisioner knows, the
// profiles that group them and their prerequisites.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"devsetup/internal/config"
	"devsetup/internal/deps"
	"devsetup/internal/installer"
)

// Tier orders the profiles; each profile includes the tiers below it.
type Tier int

const (
	TierMinimal Tier = iota
	TierDeveloper
	TierFull
)

var profileTiers = map[string]Tier{
	"minimal":   TierMinimal,
	"developer": TierDeveloper,
	"full":      TierFull,
}

// Definition describes one component.
type Definition struct {
	Name        string
	Description string
	Tier        Tier
	// Requires names the single prerequisite, if any.
	Requires string
	// Removal is shown by the rollback guide.
	Removal  string
	Detector installer.Detector
	build    func(def Definition, cfg config.Config) installer.Installer
}

// Installer builds the installer for the definition from cfg.
func (d Definition) Installer(cfg config.Config) installer.Installer {
	return d.build(d, cfg)
}

// All returns the definitions in install order.
func All() []Definition {
	return append([]Definition(nil), definitions...)
}

// Lookup finds a definition by name.
func Lookup(name string) (Definition, bool) {
	for _, def := range definitions {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// Names returns component names in install order.
func Names() []string {
	names := make([]string, len(definitions))
	for i, def := range definitions {
		names[i] = def.Name
	}
	return names
}

// Profiles returns the profile names, smallest first.
func Profiles() []string {
	names := make([]string, 0, len(profileTiers))
	for name := range profileTiers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return profileTiers[names[i]] < profileTiers[names[j]] })
	return names
}

// ProfileMembers returns the components of profile in install order.
func ProfileMembers(profile string) ([]string, error) {
	tier, ok := profileTiers[strings.ToLower(profile)]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (known: %s)", profile, strings.Join(Profiles(), ", "))
	}
	var names []string
	for _, def := range definitions {
		if def.Tier <= tier {
			names = append(names, def.Name)
		}
	}
	return names, nil
}

// Dependencies returns the prerequisite table.
func Dependencies() deps.Table {
	table := deps.Table{}
	for _, def := range definitions {
		if def.Requires != "" {
			table[def.Name] = def.Requires
		}
	}
	return table
}

// Build returns a registry holding an installer for every definition.
func Build(cfg config.Config) (*installer.Registry, error) {
	reg, err := installer.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, def := range definitions {
		if err := reg.Register(def.Installer(cfg)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Select resolves the components a run should install from cfg.
func Select(cfg config.Config) ([]string, error) {
	var members []string
	if cfg.Profile != "" {
		var err error
		members, err = ProfileMembers(cfg.Profile)
		if err != nil {
			return nil, err
		}
	}
	return cfg.SelectComponents(members, Names()), nil
}

func gitSetting(key, want string) installer.Detector {
	return installer.Detector{Check: func(ctx context.Context, env *installer.Env) (bool, string) {
		res, err := env.Runner.Run(ctx, "git", []string{"config", "--global", "--get", key}, installer.RunOptions{})
		if err != nil {
			return false, ""
		}
		return strings.TrimSpace(string(res.Stdout)) == want, "configured"
	}}
}
