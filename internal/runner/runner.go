// Package runner drives the fixed nine-step pipeline sequence, dispatching
// to each step's planned plugin list while threading the shared State
// Store, enforcing dry-run semantics, and handling rollback (spec §4.5).
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/semanteecore/forge-release/internal/config"
	"github.com/semanteecore/forge-release/internal/domain"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/planner"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/resolver"
	"github.com/semanteecore/forge-release/internal/state"
)

const changelogKey = "changelog"

// Result is the runner's terminal outcome: either Completed or Aborted
// (spec §4.5).
type Result struct {
	Completed bool
	Step      plugin.Step
	Reason    string
	Events    []domain.PipelineEvent
	Releases  []domain.ReleaseEvent
	Store     *state.Store
}

// Runner drives the pipeline state machine over the fixed step sequence.
type Runner struct {
	cfg    *config.Configuration
	reg    *registry.Registry
	plan   resolver.Plan
	store    *state.Store
	logger   *slog.Logger
	events   []domain.PipelineEvent
	releases []domain.ReleaseEvent
	runID    string
}

// New constructs a Runner from a validated configuration and capability
// registry, resolving every step up front so that a ResolutionError
// surfaces before any plugin runs. Planning happens per step in Run, so a
// PlanError surfaces at the start of the step it affects.
func New(cfg *config.Configuration, reg *registry.Registry, logger *slog.Logger, runID string) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	plan, err := resolver.Resolve(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		reg:    reg,
		plan:   plan,
		store:  state.New(),
		logger: logger,
		runID:  runID,
	}, nil
}

// Store exposes the runner's State Store, primarily for tests.
func (r *Runner) Store() *state.Store { return r.store }

// Run executes the pipeline to completion, abort, or cancellation (spec
// §4.5, §5). Callers pass a ctx whose cancellation is observed at each
// per-plugin suspension point between invocations.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.emit(domain.PipelineEvent{RunID: r.runID, Status: domain.PipelineStatusRunning})

	if r.cfg.DryRun {
		r.logger.Info(fmt.Sprintf("DRY RUN: skipping steps %s", formatStepList(orderedEffectfulSteps())))
	}

	for _, step := range plugin.Order {
		if err := ctx.Err(); err != nil {
			r.rollback()
			r.emit(domain.PipelineEvent{RunID: r.runID, Status: domain.PipelineStatusAborted})
			return &Result{Completed: false, Step: step, Reason: "cancelled", Events: r.events, Releases: r.releases, Store: r.store},
				errors.New(errors.CodeCancelled, "pipeline cancelled")
		}

		if r.cfg.DryRun && plugin.EffectfulInDryRun[step] {
			r.logger.Info("skipping step in dry-run mode", slog.String("step", string(step)))
			continue
		}

		if err := r.runStep(ctx, step); err != nil {
			r.emit(domain.PipelineEvent{RunID: r.runID, Status: domain.PipelineStatusFailed})
			r.rollback()
			r.emit(domain.PipelineEvent{RunID: r.runID, Status: domain.PipelineStatusAborted})
			return &Result{Completed: false, Step: step, Reason: err.Error(), Events: r.events, Releases: r.releases, Store: r.store}, err
		}

		if step == plugin.GenerateNotes {
			r.dumpChangelog()
		}
		if step == plugin.Commit {
			r.emitRelease()
		}
	}

	if !r.cfg.DryRun {
		r.discardRollbackTokens()
	} else {
		r.rollback()
	}

	r.emit(domain.PipelineEvent{RunID: r.runID, Status: domain.PipelineStatusCompleted})
	return &Result{Completed: true, Events: r.events, Releases: r.releases, Store: r.store}, nil
}

// runStep dispatches every planned plugin for step in planner order,
// merging writes and applying the fatal/non-fatal failure policy of spec
// §4.5 step 3.
func (r *Runner) runStep(ctx context.Context, step plugin.Step) error {
	r.logger.Info(fmt.Sprintf("Running step '%s'", step))

	ids := r.plan[step]
	stateKeys := r.store.Snapshot()
	ordered, err := planner.PlanStep(ids, r.reg, stateKeys)
	if err != nil {
		return err
	}

	for _, id := range ordered {
		if err := ctx.Err(); err != nil {
			return errors.New(errors.CodeCancelled, "pipeline cancelled")
		}

		if len(ordered) == 1 && !isSharedBinding(r.cfg, step) {
			r.logger.Info(fmt.Sprintf("Invoking singleton '%s'", id))
		} else {
			r.logger.Info(fmt.Sprintf("Invoking plugin '%s'", id))
		}

		p := r.reg.Plugin(id)
		if p == nil {
			return errors.Newf(errors.CodeInternal, "plugin %q is planned for step %s but not registered", id, step)
		}

		if err := r.checkRequiredPresent(p, id); err != nil {
			return err
		}

		outcome := p.RunStep(ctx, step, r.store)
		switch outcome.Kind {
		case plugin.OutcomeOK:
			r.mergeWrites(p, outcome.Writes)
		case plugin.OutcomeSkipped:
			continue
		case plugin.OutcomeFailed:
			if err := r.handleFailure(step, id, outcome); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkRequiredPresent is the safety check of spec §4.5 step 3: the
// planner already validated this, so a violation here indicates an
// internal invariant failure.
func (r *Runner) checkRequiredPresent(p plugin.Plugin, id string) error {
	for key := range p.RequiredCapabilities() {
		if !r.store.Has(key) {
			return errors.Newf(errors.CodeInternal,
				"plugin %q required key %q is missing at invocation time (planner invariant violated)", id, key)
		}
	}
	return nil
}

func (r *Runner) mergeWrites(p plugin.Plugin, writes map[string]state.Value) {
	provisioned := p.ProvisionCapabilities()
	for key, value := range writes {
		if !provisioned[key] {
			r.logger.Warn("plugin wrote a key it did not declare in its provision capabilities",
				slog.String("plugin", p.ID()), slog.String("key", key))
		}
		r.store.Set(key, value)
	}
}

// handleFailure applies spec §4.5 step 3's fatal/non-fatal policy.
func (r *Runner) handleFailure(step plugin.Step, id string, outcome plugin.Outcome) error {
	if outcome.Fatal || plugin.FatalRequired[step] {
		return errors.Newf(errors.CodePluginFailed, "step %s: plugin %q failed: %s", step, id, outcome.Reason)
	}
	r.logger.Warn("non-fatal plugin failure, continuing with next plugin",
		slog.String("step", string(step)), slog.String("plugin", id), slog.String("reason", outcome.Reason))
	return nil
}

// emitRelease appends a ReleaseEvent once Commit succeeds and a
// next_version is available in the store (spec.md §6.1's next_version key;
// SPEC_FULL.md "Supplemented features" item 1). It is only called after
// Commit ran, so dry runs, which skip Commit, never emit a ReleaseEvent.
// If no plugin wrote next_version, nothing is reported.
func (r *Runner) emitRelease() {
	v, ok := r.store.Get("next_version")
	if !ok {
		return
	}
	version, err := v.AsVersion()
	if err != nil {
		return
	}
	r.releases = append(r.releases, domain.ReleaseEvent{RunID: r.runID, Version: version.Raw})
}

func (r *Runner) dumpChangelog() {
	v, ok := r.store.Get(changelogKey)
	if !ok {
		return
	}
	text, err := v.AsString()
	if err != nil {
		return
	}
	r.logger.Info("--------- BEGIN CHANGELOG ----------\n" + text + "\n---------- END CHANGELOG -----------")
}

// rollback restores every captured rollback token in LIFO order of
// capture (spec §4.5 Rollback).
func (r *Runner) rollback() {
	for _, token := range r.store.RollbackTokens() {
		id := token.Key[len("rollback."):]
		p := r.reg.Plugin(id)
		if p == nil {
			continue
		}
		restorer, ok := p.(Restorer)
		if !ok {
			continue
		}
		if err := restorer.Restore(token.Value); err != nil {
			r.logger.Warn("failed to restore rollback token", slog.String("plugin", id), slog.String("error", err.Error()))
		}
	}
}

// discardRollbackTokens is the clean-success-in-release-mode branch of
// spec §4.5 Rollback: tokens are simply never consumed.
func (r *Runner) discardRollbackTokens() {}

func (r *Runner) emit(e domain.PipelineEvent) {
	r.events = append(r.events, e)
}

func isSharedBinding(cfg *config.Configuration, step plugin.Step) bool {
	b := cfg.BindingFor(step)
	return b.Kind != config.BindingSingleton
}

func orderedEffectfulSteps() []plugin.Step {
	return []plugin.Step{plugin.Commit, plugin.Publish, plugin.Notify}
}

// formatStepList renders steps as "[Commit, Publish, Notify]", matching
// the exact log line named in spec §6.4 scenario 1.
func formatStepList(steps []plugin.Step) string {
	names := map[plugin.Step]string{
		plugin.Commit:  "Commit",
		plugin.Publish: "Publish",
		plugin.Notify:  "Notify",
	}
	out := "["
	for i, s := range steps {
		if i > 0 {
			out += ", "
		}
		out += names[s]
	}
	return out + "]"
}

// Restorer is implemented by plugins that mutate on-disk files during
// dry-run execution and capture a rollback token (spec §4.1). The runner
// calls Restore with the exact Value the plugin stored under its
// rollback.<plugin> key.
type Restorer interface {
	Restore(token state.Value) error
}
