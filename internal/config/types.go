// Package config provides the declarative Configuration model (spec §3,
// §4.6, §6.1): a validated plugin table, steps table, and cfg table.
package config

import (
	"github.com/semanteecore/forge-release/internal/plugin"
)

// LocationKind distinguishes supported plugin locations (spec §3
// PluginLocation). Builtin is the only supported variant in this version;
// External is reserved for a future release.
type LocationKind int

const (
	// Builtin is the only supported location in this version.
	Builtin LocationKind = iota
	// External is reserved for a future location variant.
	External
)

// PluginLocation is the normalized form of a plugins-table value.
type PluginLocation struct {
	Kind LocationKind
	// Schema is an optional CUE definition the plugin's cfg subtable must
	// satisfy (empty if the plugin declared none), checked by
	// internal/cueschema during Validate.
	Schema string
}

// BindingKind tags the variant of a StepBinding.
type BindingKind int

const (
	// BindingSingleton binds exactly one plugin to a step.
	BindingSingleton BindingKind = iota
	// BindingShared binds an ordered, non-empty list of plugins.
	BindingShared
	// BindingDiscover asks the resolver to infer the plugin list.
	BindingDiscover
)

// StepBinding is the per-step configuration decision (spec §3).
type StepBinding struct {
	Kind    BindingKind
	Plugin  string   // valid when Kind == BindingSingleton
	Plugins []string // valid when Kind == BindingShared, preserves order
}

// Singleton constructs a Singleton binding.
func Singleton(id string) StepBinding {
	return StepBinding{Kind: BindingSingleton, Plugin: id}
}

// Shared constructs a Shared binding, preserving list order.
func Shared(ids []string) StepBinding {
	return StepBinding{Kind: BindingShared, Plugins: ids}
}

// Discover constructs a Discover binding.
func Discover() StepBinding {
	return StepBinding{Kind: BindingDiscover}
}

// Configuration is the frozen, validated triple of plugins / steps / cfg
// described in spec §3. It is constructed once at pipeline start.
type Configuration struct {
	Plugins map[string]PluginLocation
	// PluginOrder holds the plugins table's keys in declaration order
	// (spec §4.3 discover resolution order), populated by Validate.
	PluginOrder []string
	Steps       map[plugin.Step]StepBinding
	Global      map[string]interface{}
	PerPlugin   map[string]map[string]interface{}

	// DryRun mirrors the --dry CLI flag (spec §6.2); it is carried on the
	// Configuration so the runner reads it from the same frozen value as
	// the rest of its configuration.
	DryRun bool
}

// ListPlugins returns the configured plugin ids in the order they were
// declared in the plugins table (spec §4.3), mirroring the List/Has
// helper convention used throughout the configuration model.
func (c *Configuration) ListPlugins() []string {
	names := make([]string, len(c.PluginOrder))
	copy(names, c.PluginOrder)
	return names
}

// HasPlugin reports whether id is declared in the plugins table.
func (c *Configuration) HasPlugin(id string) bool {
	_, ok := c.Plugins[id]
	return ok
}

// BindingFor returns the configured binding for step, defaulting to
// Discover if the steps table omits a non-singleton step (spec §4.3).
func (c *Configuration) BindingFor(step plugin.Step) StepBinding {
	if b, ok := c.Steps[step]; ok {
		return b
	}
	return Discover()
}

// CfgFor returns the per-plugin cfg subtable for id, or an empty map if
// none was configured.
func (c *Configuration) CfgFor(id string) map[string]interface{} {
	if t, ok := c.PerPlugin[id]; ok {
		return t
	}
	return map[string]interface{}{}
}
