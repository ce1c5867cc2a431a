package deps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/logx"
)

type memState map[string]string

func (m memState) IsInstalled(name string) bool {
	_, ok := m[name]
	return ok
}

// fakeInstaller records install order and resolves nested prerequisites
// through the same resolver, the way the orchestrator does.
type fakeInstaller struct {
	state    memState
	resolver *Resolver
	fail     map[string]error
	calls    []string
}

func (f *fakeInstaller) Has(name string) bool {
	switch name {
	case "kubectl", "helm", "docker", "a", "b", "broken":
		return true
	}
	return false
}

func (f *fakeInstaller) InstallComponent(ctx context.Context, name string) error {
	if err := f.resolver.Resolve(ctx, name); err != nil {
		return err
	}
	f.calls = append(f.calls, name)
	if err := f.fail[name]; err != nil {
		return err
	}
	f.state[name] = "1.0"
	return nil
}

func newHarness(table Table) (*Resolver, *fakeInstaller, *logx.Memory) {
	logger, mem := logx.NewMemory()
	state := memState{}
	r := &Resolver{Table: table, State: state, Logger: logger}
	inst := &fakeInstaller{state: state, resolver: r, fail: map[string]error{}}
	r.Installer = inst
	return r, inst, mem
}

func TestResolveNoPrerequisite(t *testing.T) {
	r, inst, _ := newHarness(Table{"helm": "kubectl"})
	require.NoError(t, r.Resolve(context.Background(), "docker"))
	assert.Empty(t, inst.calls)
}

func TestResolvePrerequisiteAlreadyInstalled(t *testing.T) {
	r, inst, _ := newHarness(Table{"helm": "kubectl"})
	inst.state["kubectl"] = "1.30.0"

	require.NoError(t, r.Resolve(context.Background(), "helm"))
	assert.Empty(t, inst.calls)
}

func TestFreshRunInstallsKubectlBeforeHelm(t *testing.T) {
	_, inst, _ := newHarness(Table{"helm": "kubectl"})

	require.NoError(t, inst.InstallComponent(context.Background(), "helm"))

	assert.Equal(t, []string{"kubectl", "helm"}, inst.calls)
	assert.True(t, inst.state.IsInstalled("kubectl"))
	assert.True(t, inst.state.IsInstalled("helm"))
}

func TestResolveSelfReference(t *testing.T) {
	r, inst, _ := newHarness(Table{"a": "a"})
	err := r.Resolve(context.Background(), "a")
	assert.ErrorIs(t, err, ErrCyclicDependency)
	assert.Empty(t, inst.calls)
}

func TestResolveDetectsLongerCycle(t *testing.T) {
	r, inst, _ := newHarness(Table{"a": "b", "b": "a"})

	err := r.Resolve(context.Background(), "a")
	require.ErrorIs(t, err, ErrCyclicDependency)
	assert.Empty(t, inst.calls)
	assert.Empty(t, r.active, "active set must be cleared after resolution")
}

func TestResolveUnknownPrerequisiteWarns(t *testing.T) {
	r, _, mem := newHarness(Table{"helm": "ghost"})

	require.NoError(t, r.Resolve(context.Background(), "helm"))
	assert.True(t, mem.Contains(logx.LevelWarn, "helm requires ghost"))
}

func TestResolveFailedPrerequisiteBestEffort(t *testing.T) {
	r, inst, mem := newHarness(Table{"helm": "broken"})
	inst.fail["broken"] = errors.New("apt-get exited 100")

	require.NoError(t, r.Resolve(context.Background(), "helm"))
	assert.True(t, mem.Contains(logx.LevelWarn, "apt-get exited 100"))
}

func TestResolveStrictReturnsUnresolvable(t *testing.T) {
	r, inst, _ := newHarness(Table{"helm": "broken", "docker": "ghost"})
	r.Strict = true
	inst.fail["broken"] = errors.New("apt-get exited 100")

	assert.ErrorIs(t, r.Resolve(context.Background(), "helm"), ErrDependencyUnresolvable)
	assert.ErrorIs(t, r.Resolve(context.Background(), "docker"), ErrDependencyUnresolvable)
}

func TestTableValidate(t *testing.T) {
	known := func(name string) bool { return name != "ghost" }

	assert.NoError(t, Table{"helm": "kubectl", "yarn": "nodejs"}.Validate(known))

	err := Table{"a": "b", "b": "a"}.Validate(known)
	assert.ErrorIs(t, err, ErrCyclicDependency)

	err = Table{"helm": "ghost"}.Validate(known)
	assert.ErrorIs(t, err, ErrDependencyUnresolvable)
}
