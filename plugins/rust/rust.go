// Package rust implements the built-in "rust" plugin: Prepare bumps the
// version field in Cargo.toml (capturing a rollback token of the prior
// contents), and VerifyRelease runs cargo build and cargo test. Grounded
// on catalyst-forge-libs/config's use of go-toml/v2 for document parsing
// and internal/executil's subprocess pattern (itself adapted from
// catalyst-forge-libs/executor).
package rust

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/semanteecore/forge-release/internal/executil"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const keyNextVersion = "next_version"

// Plugin is the built-in rust plugin.
type Plugin struct {
	plugin.Base

	manifestPath string
	skipTests    bool
}

// New constructs the rust plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Prepare, plugin.VerifyRelease},
			[]string{state.RollbackKey(id)},
			[]string{keyNextVersion},
		),
		manifestPath: "Cargo.toml",
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["manifest_path"].(string); ok && v != "" {
		p.manifestPath = v
	}
	if v, ok := subtable["skip_tests"].(bool); ok {
		p.skipTests = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	switch step {
	case plugin.Prepare:
		return p.prepare(store)
	case plugin.VerifyRelease:
		return p.verify(ctx)
	default:
		return plugin.Failed(fmt.Sprintf("rust plugin does not implement step %s", step), true)
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

func (p *Plugin) verify(ctx context.Context) plugin.Outcome {
	if _, err := executil.Run(ctx, ".", "cargo", "build", "--release"); err != nil {
		return plugin.Failed(err.Error(), true)
	}

	if p.skipTests {
		return plugin.OK(nil)
	}

	if _, err := executil.Run(ctx, ".", "cargo", "test"); err != nil {
		return plugin.Failed(err.Error(), true)
	}

	return plugin.OK(nil)
}

// Restore implements runner.Restorer, rewriting the manifest to its
// pre-Prepare contents.
func (p *Plugin) Restore(token state.Value) error {
	backup, ok := token.Blob.(manifestBackup)
	if !ok {
		return fmt.Errorf("rust plugin: unexpected rollback token type %T", token.Blob)
	}
	return os.WriteFile(backup.path, backup.contents, 0o644)
}

type manifestBackup struct {
	path     string
	contents []byte
}

// setVersion rewrites the top-level [package].version field in a
// Cargo.toml document by decoding and re-encoding it. All other keys and
// values are kept; comments, key order and string quoting are not.
func setVersion(data []byte, version string) ([]byte, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	pkg, ok := doc["package"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("Cargo.toml has no [package] table")
	}
	pkg["version"] = version
	doc["package"] = pkg

	return toml.Marshal(doc)
}
