package runner_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/config"
	"github.com/semanteecore/forge-release/internal/domain"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/runner"
	"github.com/semanteecore/forge-release/internal/state"
)

type fakePlugin struct {
	plugin.Base
	run func(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome
}

func newFake(id string, methods []plugin.Step, provides, requires []string, run func(context.Context, plugin.Step, *state.Store) plugin.Outcome) *fakePlugin {
	return &fakePlugin{Base: plugin.NewBase(id, methods, provides, requires), run: run}
}

func (f *fakePlugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	return f.run(ctx, step, store)
}

func okOutcome(writes map[string]state.Value) func(context.Context, plugin.Step, *state.Store) plugin.Outcome {
	return func(context.Context, plugin.Step, *state.Store) plugin.Outcome {
		return plugin.OK(writes)
	}
}

func minimalConfig(dryRun bool) *config.Configuration {
	return &config.Configuration{
		Plugins: map[string]config.PluginLocation{"git": {Kind: config.Builtin}},
		Steps: map[plugin.Step]config.StepBinding{
			plugin.GetLastRelease: config.Singleton("git"),
			plugin.Commit:         config.Singleton("git"),
		},
		DryRun: dryRun,
	}
}

func TestRunCompletesAndEmitsLifecycleEvents(t *testing.T) {
	p := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil, okOutcome(nil))
	reg := registry.Build([]plugin.Plugin{p}, slog.Default())

	r, err := runner.New(minimalConfig(false), reg, slog.Default(), "run-1")
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)

	assert.Equal(t, domain.PipelineStatusRunning, result.Events[0].Status)
	assert.Equal(t, domain.PipelineStatusCompleted, result.Events[len(result.Events)-1].Status)
}

func TestRunEmitsReleaseEventOnceCommitWritesNextVersion(t *testing.T) {
	p := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil,
		func(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
			if step == plugin.Commit {
				return plugin.OK(map[string]state.Value{
					"next_version": state.Version(state.SemVer{Raw: "1.2.3"}),
				})
			}
			return plugin.OK(nil)
		})
	reg := registry.Build([]plugin.Plugin{p}, slog.Default())

	r, err := runner.New(minimalConfig(false), reg, slog.Default(), "run-release")
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Releases, 1)
	assert.Equal(t, domain.ReleaseEvent{RunID: "run-release", Version: "1.2.3"}, result.Releases[0])
}

func TestDryRunSkipsEffectfulSteps(t *testing.T) {
	var commitCalled bool
	p := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil,
		func(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
			if step == plugin.Commit {
				commitCalled = true
			}
			return plugin.OK(nil)
		})
	reg := registry.Build([]plugin.Plugin{p}, slog.Default())

	r, err := runner.New(minimalConfig(true), reg, slog.Default(), "run-2")
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.False(t, commitCalled, "Commit must not run in dry-run mode")
}

func TestFatalFailureAbortsPipeline(t *testing.T) {
	p := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil,
		func(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
			if step == plugin.GetLastRelease {
				return plugin.Failed("boom", true)
			}
			return plugin.OK(nil)
		})
	reg := registry.Build([]plugin.Plugin{p}, slog.Default())

	r, err := runner.New(minimalConfig(false), reg, slog.Default(), "run-3")
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, errors.CodePluginFailed, errors.CodeOf(err))
}

func TestCancellationAbortsBeforeNextStep(t *testing.T) {
	p := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil, okOutcome(nil))
	reg := registry.Build([]plugin.Plugin{p}, slog.Default())

	r, err := runner.New(minimalConfig(false), reg, slog.Default(), "run-4")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.Run(ctx)
	require.Error(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, errors.CodeCancelled, errors.CodeOf(err))
}

func TestRollbackRestoresOnDryRunSuccess(t *testing.T) {
	var restored bool
	rp := &restoringPlugin{
		fakePlugin: *newFake("rust", []plugin.Step{plugin.Prepare}, []string{state.RollbackKey("rust")}, nil,
			okOutcome(map[string]state.Value{state.RollbackKey("rust"): state.String("backup")})),
		onRestore: func() { restored = true },
	}

	cfg := minimalConfig(true)
	cfg.Steps[plugin.Prepare] = config.Singleton("rust")
	cfg.Plugins["rust"] = config.PluginLocation{Kind: config.Builtin}

	gitPlugin := newFake("git", []plugin.Step{plugin.GetLastRelease, plugin.Commit}, nil, nil, okOutcome(nil))
	reg := registry.Build([]plugin.Plugin{gitPlugin, rp}, slog.Default())

	r, err := runner.New(cfg, reg, slog.Default(), "run-5")
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.True(t, restored, "dry-run success must roll back captured tokens")
}

type restoringPlugin struct {
	fakePlugin
	onRestore func()
}

func (r *restoringPlugin) Restore(state.Value) error {
	r.onRestore()
	return nil
}
