package npm_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
	"github.com/semanteecore/forge-release/plugins/npm"
)

const packageJSON = `{
  "name": "widget",
  "version": "0.1.0",
  "dependencies": {}
}`

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(packageJSON), 0o644))
	return path
}

func TestPrepareBumpsVersionAndCapturesRollbackToken(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)

	p := npm.New("npm")
	require.NoError(t, p.Configure(map[string]interface{}{"manifest_path": path}))

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "0.2.0"}))

	outcome := p.RunStep(context.Background(), plugin.Prepare, store)
	require.Equal(t, plugin.OutcomeOK, outcome.Kind)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(updated, &doc))
	assert.Equal(t, "0.2.0", doc["version"])
	assert.Equal(t, "widget", doc["name"])

	token, ok := outcome.Writes[state.RollbackKey("npm")]
	require.True(t, ok)

	require.NoError(t, p.Restore(token))
	restored, err := os.ReadFile(path)
	require.NoError(t, err)

	var restoredDoc, originalDoc map[string]interface{}
	require.NoError(t, json.Unmarshal(restored, &restoredDoc))
	require.NoError(t, json.Unmarshal([]byte(packageJSON), &originalDoc))
	assert.Equal(t, originalDoc, restoredDoc)
}

func TestPrepareFailsWithoutNextVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)

	p := npm.New("npm")
	require.NoError(t, p.Configure(map[string]interface{}{"manifest_path": path}))

	outcome := p.RunStep(context.Background(), plugin.Prepare, state.New())
	require.Equal(t, plugin.OutcomeFailed, outcome.Kind)
	assert.True(t, outcome.Fatal)
}

func TestPublishWithRegistryAndTagFailsWithoutNpm(t *testing.T) {
	p := npm.New("npm")
	require.NoError(t, p.Configure(map[string]interface{}{"registry": "https://registry.example.com", "tag": "next"}))

	outcome := p.RunStep(context.Background(), plugin.Publish, state.New())
	assert.Equal(t, plugin.OutcomeFailed, outcome.Kind, "expected failure when npm is not on PATH")
}
