package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/planner"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/state"
)

type stubPlugin struct {
	plugin.Base
}

func newStub(id string, provides, requires []string) *stubPlugin {
	return &stubPlugin{Base: plugin.NewBase(id, []plugin.Step{plugin.Prepare}, provides, requires)}
}

func (s *stubPlugin) RunStep(context.Context, plugin.Step, *state.Store) plugin.Outcome {
	return plugin.OK(nil)
}

func TestPlanStepOrdersByDependency(t *testing.T) {
	producer := newStub("producer", []string{"artifact_path"}, nil)
	consumer := newStub("consumer", nil, []string{"artifact_path"})

	reg := registry.Build([]plugin.Plugin{consumer, producer}, nil)

	ordered, err := planner.PlanStep([]string{"consumer", "producer"}, reg, map[string]struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "consumer"}, ordered)
}

func TestPlanStepSkipsEdgeWhenKeyAlreadyInStore(t *testing.T) {
	consumer := newStub("consumer", nil, []string{"artifact_path"})
	reg := registry.Build([]plugin.Plugin{consumer}, nil)

	ordered, err := planner.PlanStep([]string{"consumer"}, reg, map[string]struct{}{"artifact_path": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{"consumer"}, ordered)
}

func TestPlanStepUnsatisfiedRequirementFails(t *testing.T) {
	consumer := newStub("consumer", nil, []string{"artifact_path"})
	reg := registry.Build([]plugin.Plugin{consumer}, nil)

	_, err := planner.PlanStep([]string{"consumer"}, reg, map[string]struct{}{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsatisfiedRequirement, errors.CodeOf(err))
}

func TestPlanStepCycleFails(t *testing.T) {
	a := newStub("a", []string{"b_out"}, []string{"a_out"})
	b := newStub("b", []string{"a_out"}, []string{"b_out"})
	reg := registry.Build([]plugin.Plugin{a, b}, nil)

	_, err := planner.PlanStep([]string{"a", "b"}, reg, map[string]struct{}{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeCycle, errors.CodeOf(err))
}

func TestPlanStepPreservesOrderAsTieBreak(t *testing.T) {
	a := newStub("a", nil, nil)
	b := newStub("b", nil, nil)
	reg := registry.Build([]plugin.Plugin{a, b}, nil)

	ordered, err := planner.PlanStep([]string{"b", "a"}, reg, map[string]struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ordered)
}
