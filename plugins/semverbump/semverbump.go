// Package semverbump implements the built-in "semverbump" plugin:
// DeriveNextVersion bumps last_version by the bump_level clog produced,
// using Masterminds/semver/v3 the same way catalyst-forge-libs/schemas
// uses it for schema-version compatibility checks.
package semverbump

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyLastVersion = "last_version"
	keyBumpLevel   = "bump_level"
	keyNextVersion = "next_version"
)

// Plugin is the built-in semverbump plugin.
type Plugin struct {
	plugin.Base

	initialVersion string
}

// New constructs the semverbump plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.DeriveNextVersion},
			[]string{keyNextVersion},
			[]string{keyLastVersion, keyBumpLevel},
		),
		initialVersion: "0.1.0",
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["initial_version"].(string); ok && v != "" {
		p.initialVersion = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.DeriveNextVersion {
		return plugin.Failed(fmt.Sprintf("semverbump plugin does not implement step %s", step), true)
	}

	lastVal, ok := store.Get(keyLastVersion)
	if !ok {
		return plugin.Failed("last_version is not present in the state store", true)
	}
	last, err := lastVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	level := "patch"
	if bv, ok := store.Get(keyBumpLevel); ok {
		if s, err := bv.AsString(); err == nil && s != "" {
			level = s
		}
	}

	next, err := bump(last.Raw, level, p.initialVersion)
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	return plugin.OK(map[string]state.Value{
		keyNextVersion: state.Version(state.SemVer{
			Major: next.Major(),
			Minor: next.Minor(),
			Patch: next.Patch(),
			Raw:   next.String(),
		}),
	})
}

func bump(lastRaw, level, initial string) (*semver.Version, error) {
	if lastRaw == "0.0.0" {
		v, err := semver.NewVersion(initial)
		if err != nil {
			return nil, fmt.Errorf("invalid initial_version %q: %w", initial, err)
		}
		return v, nil
	}

	last, err := semver.NewVersion(lastRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid last_version %q: %w", lastRaw, err)
	}

	switch level {
	case "none":
		return last, nil
	case "major":
		v := last.IncMajor()
		return &v, nil
	case "minor":
		v := last.IncMinor()
		return &v, nil
	default:
		v := last.IncPatch()
		return &v, nil
	}
}
