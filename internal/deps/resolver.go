package deps

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"devsetup/internal/logx"
)

var (
	ErrCyclicDependency       = errors.New("cyclic dependency")
	ErrDependencyUnresolvable = errors.New("dependency unresolvable")
)

// Table maps a component to its single prerequisite.
type Table map[string]string

// Prerequisite returns the declared prerequisite of name.
func (t Table) Prerequisite(name string) (string, bool) {
	p, ok := t[name]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Validate walks every chain and reports cycles and prerequisites that known
// does not recognise.
func (t Table) Validate(known func(string) bool) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		seen := map[string]bool{name: true}
		cur := name
		for {
			next, ok := t.Prerequisite(cur)
			if !ok {
				break
			}
			if known != nil && !known(next) {
				errs = append(errs, fmt.Errorf("%w: %s requires unknown component %s", ErrDependencyUnresolvable, cur, next))
				break
			}
			if seen[next] {
				errs = append(errs, fmt.Errorf("%w: %s reaches %s again", ErrCyclicDependency, name, next))
				break
			}
			seen[next] = true
			cur = next
		}
	}
	return errors.Join(errs...)
}

// InstalledSet answers "already installed?".
type InstalledSet interface {
	IsInstalled(name string) bool
}

// Installer runs the installer registered for a component name.
type Installer interface {
	Has(name string) bool
	InstallComponent(ctx context.Context, name string) error
}

// Resolver makes sure a component's prerequisite is installed before the
// component itself. Unknown or failing prerequisites are logged and skipped
// unless Strict is set.
type Resolver struct {
	Table     Table
	State     InstalledSet
	Installer Installer
	Strict    bool
	Logger    *logx.Logger

	active map[string]bool
}

// Resolve installs component's prerequisite when it is missing. A component
// that requires itself, or whose prerequisite is already being resolved
// further up the call stack, fails with ErrCyclicDependency.
func (r *Resolver) Resolve(ctx context.Context, component string) error {
	prereq, ok := r.Table.Prerequisite(component)
	if !ok {
		return nil
	}
	if prereq == component {
		return fmt.Errorf("%w: %s requires itself", ErrCyclicDependency, component)
	}
	if r.active[prereq] {
		return fmt.Errorf("%w: %s requires %s, which is still being resolved", ErrCyclicDependency, component, prereq)
	}
	if r.State.IsInstalled(prereq) {
		r.Logger.Debugf("%s: prerequisite %s already installed", component, prereq)
		return nil
	}

	if r.active == nil {
		r.active = map[string]bool{}
	}
	r.active[component] = true
	defer delete(r.active, component)

	if r.Installer == nil || !r.Installer.Has(prereq) {
		return r.unresolvable(component, prereq, errors.New("no installer registered"))
	}

	r.Logger.Infof("%s requires %s; installing it first", component, prereq)
	if err := r.Installer.InstallComponent(ctx, prereq); err != nil {
		if errors.Is(err, ErrCyclicDependency) || ctx.Err() != nil {
			return err
		}
		return r.unresolvable(component, prereq, err)
	}
	if !r.State.IsInstalled(prereq) {
		return r.unresolvable(component, prereq, errors.New("installer did not record it"))
	}
	return nil
}

func (r *Resolver) unresolvable(component, prereq string, cause error) error {
	err := fmt.Errorf("%w: %s requires %s: %w", ErrDependencyUnresolvable, component, prereq, cause)
	if r.Strict {
		r.Logger.Errorf("%v", err)
		return err
	}
	r.Logger.Warnf("%v; continuing with %s", err, component)
	return nil
}
