package registry_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/state"
)

type stubPlugin struct {
	plugin.Base
}

func newStub(id string, methods []plugin.Step, provides, requires []string) *stubPlugin {
	return &stubPlugin{Base: plugin.NewBase(id, methods, provides, requires)}
}

func (s *stubPlugin) RunStep(context.Context, plugin.Step, *state.Store) plugin.Outcome {
	return plugin.OK(nil)
}

func TestBuildIndexesByStepAndProvider(t *testing.T) {
	a := newStub("a", []plugin.Step{plugin.Prepare}, []string{"x"}, nil)
	b := newStub("b", []plugin.Step{plugin.Prepare, plugin.VerifyRelease}, []string{"x"}, nil)

	reg := registry.Build([]plugin.Plugin{a, b}, slog.Default())

	assert.True(t, reg.Implements("a", plugin.Prepare))
	assert.False(t, reg.Implements("a", plugin.VerifyRelease))
	assert.Equal(t, []string{"a", "b"}, reg.DiscoverStep(plugin.Prepare))
	assert.ElementsMatch(t, []string{"a", "b"}, reg.Providers("x"))
}

func TestPluginLookupMissingReturnsNil(t *testing.T) {
	reg := registry.Build(nil, nil)
	assert.Nil(t, reg.Plugin("missing"))
	assert.False(t, reg.Implements("missing", plugin.Prepare))
}

func TestRequiredAndProvisionedKeys(t *testing.T) {
	a := newStub("a", []plugin.Step{plugin.Prepare}, []string{"next_version"}, []string{"last_version"})
	reg := registry.Build([]plugin.Plugin{a}, nil)

	require.True(t, reg.RequiredKeys("a")["last_version"])
	require.True(t, reg.ProvisionedKeys("a")["next_version"])
}
