package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/config"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/resolver"
	"github.com/semanteecore/forge-release/internal/state"
)

type stubPlugin struct {
	plugin.Base
}

func newStub(id string, methods []plugin.Step) *stubPlugin {
	return &stubPlugin{Base: plugin.NewBase(id, methods, nil, nil)}
}

func (s *stubPlugin) RunStep(context.Context, plugin.Step, *state.Store) plugin.Outcome {
	return plugin.OK(nil)
}

func baseConfig() *config.Configuration {
	return &config.Configuration{
		Plugins: map[string]config.PluginLocation{
			"git":  {Kind: config.Builtin},
			"clog": {Kind: config.Builtin},
		},
		Steps: map[plugin.Step]config.StepBinding{},
	}
}

func TestOmittedSingletonOnlyStepResolvesEmpty(t *testing.T) {
	reg := registry.Build([]plugin.Plugin{newStub("git", []plugin.Step{plugin.GetLastRelease})}, nil)
	plan, err := resolver.Resolve(baseConfig(), reg, nil)

	require.NoError(t, err)
	assert.Empty(t, plan[plugin.GetLastRelease])
	assert.Empty(t, plan[plugin.Commit])
}

func TestSingletonBindingResolves(t *testing.T) {
	cfg := baseConfig()
	cfg.Steps[plugin.GetLastRelease] = config.Singleton("git")

	reg := registry.Build([]plugin.Plugin{newStub("git", []plugin.Step{plugin.GetLastRelease})}, nil)
	plan, err := resolver.Resolve(cfg, reg, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"git"}, plan[plugin.GetLastRelease])
}

func TestSharedBindingOnSingletonOnlyStepFails(t *testing.T) {
	cfg := baseConfig()
	cfg.Steps[plugin.Commit] = config.Shared([]string{"git"})

	reg := registry.Build([]plugin.Plugin{newStub("git", []plugin.Step{plugin.Commit})}, nil)
	_, err := resolver.Resolve(cfg, reg, nil)

	require.Error(t, err)
	assert.Equal(t, errors.CodeSingletonStepCannotShare, errors.CodeOf(err))
}

func TestDiscoverOnSingletonOnlyStepFails(t *testing.T) {
	cfg := baseConfig()
	cfg.Steps[plugin.Commit] = config.Discover()

	reg := registry.Build([]plugin.Plugin{newStub("git", []plugin.Step{plugin.Commit})}, nil)
	_, err := resolver.Resolve(cfg, reg, nil)

	require.Error(t, err)
	assert.Equal(t, errors.CodeDiscoverIllegalForSingleton, errors.CodeOf(err))
}

func TestBindingToPluginMissingCapabilityFails(t *testing.T) {
	cfg := baseConfig()
	cfg.Steps[plugin.GenerateNotes] = config.Singleton("git")

	reg := registry.Build([]plugin.Plugin{newStub("git", []plugin.Step{plugin.GetLastRelease})}, nil)
	_, err := resolver.Resolve(cfg, reg, nil)

	require.Error(t, err)
	assert.Equal(t, errors.CodeMissingCapability, errors.CodeOf(err))
}

func TestDiscoverGathersAllImplementors(t *testing.T) {
	cfg := baseConfig()
	cfg.Steps[plugin.GenerateNotes] = config.Discover()

	reg := registry.Build([]plugin.Plugin{
		newStub("clog", []plugin.Step{plugin.GenerateNotes}),
	}, nil)
	plan, err := resolver.Resolve(cfg, reg, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"clog"}, plan[plugin.GenerateNotes])
}
