package config

import (
	"sort"
	"strings"

	"github.com/semanteecore/forge-release/internal/cueschema"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
)

// stepAliases maps the TOML step-name spelling (spec §6.1) to the
// canonical Step identifier, matched case-insensitively (spec §4.6).
var stepAliases = map[string]plugin.Step{
	"pre_flight":          plugin.PreFlight,
	"get_last_release":    plugin.GetLastRelease,
	"derive_next_version": plugin.DeriveNextVersion,
	"generate_notes":      plugin.GenerateNotes,
	"prepare":             plugin.Prepare,
	"verify_release":      plugin.VerifyRelease,
	"commit":              plugin.Commit,
	"publish":             plugin.Publish,
	"notify":              plugin.Notify,
}

// Validate normalizes and validates a parsed document into a frozen
// Configuration, per spec §4.6. Validation failures are *errors.Error
// values with one of the ConfigError kinds named in §4.6.
func Validate(doc *document) (*Configuration, error) {
	plugins, err := validatePlugins(doc.Plugins)
	if err != nil {
		return nil, err
	}

	steps, err := validateSteps(doc.Steps, plugins)
	if err != nil {
		return nil, err
	}

	global, perPlugin, err := validateCfg(doc.Cfg, plugins)
	if err != nil {
		return nil, err
	}

	for id, table := range perPlugin {
		if err := cueschema.Validate(plugins[id].Schema, table); err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeBadConfig,
				"plugin cfg subtable failed schema validation", map[string]interface{}{
					"plugin": id,
				})
		}
	}

	return &Configuration{
		Plugins:     plugins,
		PluginOrder: pluginOrder(doc.pluginOrder, plugins),
		Steps:       steps,
		Global:      global,
		PerPlugin:   perPlugin,
	}, nil
}

// pluginOrder reconciles the scanned declaration order against the
// validated plugins map: scanned names not present in plugins are
// dropped, and any plugin missing from the scan (scanPluginOrder missed
// it, or the document used a shape it doesn't understand) is appended at
// the end in a stable, sorted order so the result stays deterministic.
func pluginOrder(scanned []string, plugins map[string]PluginLocation) []string {
	out := make([]string, 0, len(plugins))
	seen := make(map[string]bool, len(plugins))

	for _, id := range scanned {
		if _, ok := plugins[id]; !ok || seen[id] {
			continue
		}
		out = append(out, id)
		seen[id] = true
	}

	if len(out) < len(plugins) {
		var missing []string
		for id := range plugins {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		out = append(out, missing...)
	}

	return out
}

// validatePlugins normalizes each plugins-table value to a PluginLocation,
// rejecting any location other than "builtin" (spec §4.6).
func validatePlugins(raw map[string]tomlLocation) (map[string]PluginLocation, error) {
	out := make(map[string]PluginLocation, len(raw))
	for id, loc := range raw {
		value := strings.ToLower(strings.TrimSpace(loc.value()))
		if value != "builtin" {
			return nil, errors.Newf(errors.CodeUnsupportedLocation,
				"plugin %q declares unsupported location %q (only \"builtin\" is supported)", id, loc.value())
		}
		out[id] = PluginLocation{Kind: Builtin, Schema: loc.schema()}
	}
	return out, nil
}

// validateSteps normalizes step names and bindings against known steps,
// enforces the singleton-only invariant (spec §3), and rejects references
// to undeclared plugins.
func validateSteps(raw map[string]tomlBinding, plugins map[string]PluginLocation) (map[plugin.Step]StepBinding, error) {
	out := make(map[plugin.Step]StepBinding, len(raw))
	seen := make(map[plugin.Step]bool, len(raw))

	for name, binding := range raw {
		step, ok := stepAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.Newf(errors.CodeUnknownStep, "unknown step %q in steps table", name)
		}
		if seen[step] {
			return nil, errors.Newf(errors.CodeDuplicateBinding, "step %q is bound more than once", name)
		}
		seen[step] = true

		sb, err := normalizeBinding(step, binding, plugins)
		if err != nil {
			return nil, err
		}
		out[step] = sb
	}

	return out, nil
}

// normalizeBinding converts a tomlBinding into a StepBinding, validating
// plugin references and the singleton-only invariant.
func normalizeBinding(step plugin.Step, binding tomlBinding, plugins map[string]PluginLocation) (StepBinding, error) {
	if binding.isList {
		if plugin.SingletonOnly[step] {
			return StepBinding{}, errors.Newf(errors.CodeBindingIllegalForStep,
				"steps.%s: step only accepts a singleton binding, got a list", step)
		}
		for _, id := range binding.list {
			if err := requirePluginDeclared(id, plugins); err != nil {
				return StepBinding{}, err
			}
		}
		return Shared(binding.list), nil
	}

	switch strings.ToLower(strings.TrimSpace(binding.single)) {
	case "discover":
		if plugin.SingletonOnly[step] {
			return StepBinding{}, errors.Newf(errors.CodeBindingIllegalForStep,
				"steps.%s: discover is illegal on a singleton-only step", step)
		}
		return Discover(), nil
	default:
		if err := requirePluginDeclared(binding.single, plugins); err != nil {
			return StepBinding{}, err
		}
		return Singleton(binding.single), nil
	}
}

func requirePluginDeclared(id string, plugins map[string]PluginLocation) error {
	if _, ok := plugins[id]; !ok {
		return errors.Newf(errors.CodeUnknownPlugin, "binding references undeclared plugin %q", id)
	}
	return nil
}

// validateCfg splits the cfg table into the global scalar table and the
// per-plugin subtables, rejecting per-plugin subtables for undeclared
// plugins (spec §3, §4.6).
func validateCfg(raw map[string]interface{}, plugins map[string]PluginLocation) (map[string]interface{}, map[string]map[string]interface{}, error) {
	global := map[string]interface{}{}
	perPlugin := map[string]map[string]interface{}{}

	for key, value := range raw {
		if key == "global" {
			if table, ok := value.(map[string]interface{}); ok {
				global = table
			}
			continue
		}

		table, ok := value.(map[string]interface{})
		if !ok {
			// A scalar directly under cfg with a non-"global" key is
			// treated as a global scalar, matching "global scalars and
			// per-plugin subtables" (spec §6.1) without requiring every
			// top-level scalar to be nested under an explicit table.
			global[key] = value
			continue
		}

		if _, ok := plugins[key]; !ok {
			return nil, nil, errors.Newf(errors.CodeUnknownPlugin,
				"cfg table references undeclared plugin %q", key)
		}
		perPlugin[key] = table
	}

	return global, perPlugin, nil
}
