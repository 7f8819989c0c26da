// Package npm implements the built-in "npm" plugin: Prepare bumps the
// version field in package.json (capturing a rollback token of the prior
// contents), and Publish runs npm publish. Grounded on
// catalyst-forge-libs/config's document-parsing pattern and
// internal/executil's subprocess execution.
package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/semanteecore/forge-release/internal/executil"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const keyNextVersion = "next_version"

// Plugin is the built-in npm plugin.
type Plugin struct {
	plugin.Base

	manifestPath string
	registry     string
	tag          string
}

// New constructs the npm plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Prepare, plugin.Publish},
			[]string{state.RollbackKey(id)},
			[]string{keyNextVersion},
		),
		manifestPath: "package.json",
		tag:          "latest",
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["manifest_path"].(string); ok && v != "" {
		p.manifestPath = v
	}
	if v, ok := subtable["registry"].(string); ok {
		p.registry = v
	}
	if v, ok := subtable["tag"].(string); ok && v != "" {
		p.tag = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	switch step {
	case plugin.Prepare:
		return p.prepare(store)
	case plugin.Publish:
		return p.publish(ctx)
	default:
		return plugin.Failed(fmt.Sprintf("npm plugin does not implement step %s", step), true)
	}
}

func (p *Plugin) prepare(store *state.Store) plugin.Outcome {
	nextVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", true)
	}
	next, err := nextVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	original, err := os.ReadFile(p.manifestPath)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to read %s: %v", p.manifestPath, err), true)
	}

	updated, err := setVersion(original, next.Raw)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to set version in %s: %v", p.manifestPath, err), true)
	}

	if err := os.WriteFile(p.manifestPath, updated, 0o644); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to write %s: %v", p.manifestPath, err), true)
	}

	return plugin.OK(map[string]state.Value{
		state.RollbackKey(p.ID()): state.Blob(manifestBackup{path: p.manifestPath, contents: original}),
	})
}

func (p *Plugin) publish(ctx context.Context) plugin.Outcome {
	args := []string{"publish", "--tag", p.tag}
	if p.registry != "" {
		args = append(args, "--registry", p.registry)
	}

	if _, err := executil.Run(ctx, ".", "npm", args...); err != nil {
		return plugin.Failed(err.Error(), true)
	}

	return plugin.OK(nil)
}

// Restore implements runner.Restorer, rewriting package.json to its
// pre-Prepare contents.
func (p *Plugin) Restore(token state.Value) error {
	backup, ok := token.Blob.(manifestBackup)
	if !ok {
		return fmt.Errorf("npm plugin: unexpected rollback token type %T", token.Blob)
	}
	return os.WriteFile(backup.path, backup.contents, 0o644)
}

type manifestBackup struct {
	path     string
	contents []byte
}

// setVersion rewrites the top-level "version" field of a package.json
// document. Other top-level values are kept verbatim via json.RawMessage
// round-tripping; top-level keys are written in sorted order.
func setVersion(data []byte, version string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(version)
	if err != nil {
		return nil, err
	}
	doc["version"] = encoded

	return json.MarshalIndent(doc, "", "  ")
}
