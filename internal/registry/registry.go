// Package registry builds the capability registry: the per-plugin
// methods/provisions/requirements index the resolver and planner query
// (spec §4.2).
package registry

import (
	"log/slog"

	"github.com/semanteecore/forge-release/internal/plugin"
)

// Registry is the outcome of querying every configured plugin for its
// Methods, ProvisionCapabilities, and RequiredCapabilities. It is built
// once, immediately after plugin construction, and is read-only
// thereafter.
type Registry struct {
	plugins map[string]plugin.Plugin

	// byStep is the discovery index: Step -> ordered []PluginId, in the
	// order plugins were registered (which must match the plugins
	// table's declared order).
	byStep map[plugin.Step][]string

	// providers is the provider index: KeyName -> []PluginId. More than
	// one plugin may provide the same key (spec §4.2); both are kept.
	providers map[string][]string
}

// Build constructs a Registry from an ordered list of plugins. The order
// of plugins must match the plugins table's declared order, since the
// discovery index (used by Discover bindings) preserves it.
func Build(plugins []plugin.Plugin, logger *slog.Logger) *Registry {
	r := &Registry{
		plugins:   make(map[string]plugin.Plugin, len(plugins)),
		byStep:    make(map[plugin.Step][]string),
		providers: make(map[string][]string),
	}

	for _, p := range plugins {
		r.plugins[p.ID()] = p

		for step := range p.Methods() {
			r.byStep[step] = append(r.byStep[step], p.ID())
		}

		for key := range p.ProvisionCapabilities() {
			r.providers[key] = append(r.providers[key], p.ID())
			if len(r.providers[key]) > 1 && logger != nil {
				logger.Warn("multiple plugins provision the same key",
					slog.String("key", key),
					slog.Any("plugins", r.providers[key]))
			}
		}
	}

	return r
}

// Plugin returns the registered plugin for id, or nil if none exists.
func (r *Registry) Plugin(id string) plugin.Plugin {
	return r.plugins[id]
}

// Implements reports whether plugin id implements step.
func (r *Registry) Implements(id string, step plugin.Step) bool {
	p := r.plugins[id]
	if p == nil {
		return false
	}
	return p.Methods()[step]
}

// DiscoverStep returns the ordered list of plugin ids whose Methods()
// contains step, in plugins-table declaration order.
func (r *Registry) DiscoverStep(step plugin.Step) []string {
	return append([]string(nil), r.byStep[step]...)
}

// Providers returns the ordered list of plugin ids that declare
// provision of key.
func (r *Registry) Providers(key string) []string {
	return append([]string(nil), r.providers[key]...)
}

// RequiredKeys returns the required-capability set for plugin id.
func (r *Registry) RequiredKeys(id string) map[string]bool {
	p := r.plugins[id]
	if p == nil {
		return nil
	}
	return p.RequiredCapabilities()
}

// ProvisionedKeys returns the provision-capability set for plugin id.
func (r *Registry) ProvisionedKeys(id string) map[string]bool {
	p := r.plugins[id]
	if p == nil {
		return nil
	}
	return p.ProvisionCapabilities()
}
