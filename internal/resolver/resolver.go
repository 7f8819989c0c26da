// Package resolver reconciles the configured step bindings against the
// capability registry, producing a concrete ordered plugin list per step
// (spec §4.3).
package resolver

import (
	"log/slog"

	"github.com/semanteecore/forge-release/internal/config"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
)

// Plan is the resolver's output: an ordered, possibly empty plugin-id
// list per step.
type Plan map[plugin.Step][]string

// Resolve runs the per-step resolution algorithm of spec §4.3 against cfg
// and reg, returning the ordered plugin list for every canonical step.
func Resolve(cfg *config.Configuration, reg *registry.Registry, logger *slog.Logger) (Plan, error) {
	plan := make(Plan, len(plugin.Order))

	for _, step := range plugin.Order {
		// spec §4.3's final paragraph: an omitted singleton-only step
		// resolves to an empty list rather than an error — there is no
		// plugin to require it from, so there is nothing to bind.
		if _, ok := cfg.Steps[step]; !ok && plugin.SingletonOnly[step] {
			plan[step] = []string{}
			continue
		}

		ids, err := resolveStep(step, cfg.BindingFor(step), reg, logger)
		if err != nil {
			return nil, err
		}
		plan[step] = ids
	}

	return plan, nil
}

func resolveStep(step plugin.Step, binding config.StepBinding, reg *registry.Registry, logger *slog.Logger) ([]string, error) {
	switch binding.Kind {
	case config.BindingSingleton:
		return resolveSingleton(step, binding.Plugin, reg)
	case config.BindingShared:
		return resolveShared(step, binding.Plugins, reg)
	case config.BindingDiscover:
		return resolveDiscover(step, reg, logger)
	default:
		return nil, errors.Newf(errors.CodeInternal, "unknown binding kind %d for step %s", binding.Kind, step)
	}
}

func resolveSingleton(step plugin.Step, id string, reg *registry.Registry) ([]string, error) {
	if !reg.Implements(id, step) {
		return nil, errors.Newf(errors.CodeMissingCapability,
			"plugin %q is bound to step %s but does not implement it", id, step)
	}
	return []string{id}, nil
}

func resolveShared(step plugin.Step, ids []string, reg *registry.Registry) ([]string, error) {
	if plugin.SingletonOnly[step] {
		return nil, errors.Newf(errors.CodeSingletonStepCannotShare,
			"step %s only accepts a singleton binding, got a shared list", step)
	}
	for _, id := range ids {
		if !reg.Implements(id, step) {
			return nil, errors.Newf(errors.CodeMissingCapability,
				"plugin %q is bound to step %s but does not implement it", id, step)
		}
	}
	return append([]string(nil), ids...), nil
}

func resolveDiscover(step plugin.Step, reg *registry.Registry, logger *slog.Logger) ([]string, error) {
	if plugin.SingletonOnly[step] {
		return nil, errors.Newf(errors.CodeDiscoverIllegalForSingleton,
			"discover is illegal on singleton-only step %s", step)
	}

	ids := reg.DiscoverStep(step)
	if len(ids) == 0 && logger != nil {
		logger.Warn("step is marked for auto-discovery, but no plugin implements this method",
			slog.String("step", string(step)))
	}
	return ids, nil
}
