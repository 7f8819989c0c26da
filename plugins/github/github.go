// Package github implements the built-in "github" plugin: Publish
// creates a GitHub Release for next_version. No GitHub API client
// exists anywhere in the retrieval pack, so this talks to the REST API
// directly over net/http — see DESIGN.md for the stdlib justification.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyNextVersion = "next_version"
	keyChangelog   = "changelog"

	apiBase = "https://api.github.com"
)

// Plugin is the built-in github plugin.
type Plugin struct {
	plugin.Base

	owner     string
	repo      string
	token     string
	tagPrefix string
	client    *http.Client
}

// New constructs the github plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Publish},
			nil,
			[]string{keyNextVersion},
		),
		tagPrefix: "v",
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["owner"].(string); ok {
		p.owner = v
	}
	if v, ok := subtable["repo"].(string); ok {
		p.repo = v
	}
	if v, ok := subtable["token"].(string); ok {
		p.token = v
	}
	if v, ok := subtable["tag_prefix"].(string); ok {
		p.tagPrefix = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.Publish {
		return plugin.Failed(fmt.Sprintf("github plugin does not implement step %s", step), true)
	}

	if p.owner == "" || p.repo == "" || p.token == "" {
		return plugin.Failed("github plugin requires owner, repo, and token to be configured", true)
	}

	nextVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", true)
	}
	next, err := nextVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	tagName := p.tagPrefix + next.Raw

	body := ""
	if cv, ok := store.Get(keyChangelog); ok {
		if text, err := cv.AsString(); err == nil {
			body = text
		}
	}

	if err := p.createRelease(ctx, tagName, body); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to create github release: %v", err), true)
	}

	return plugin.OK(nil)
}

func (p *Plugin) createRelease(ctx context.Context, tagName, body string) error {
	payload := map[string]interface{}{
		"tag_name": tagName,
		"name":     tagName,
		"body":     body,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases", apiBase, p.owner, p.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("github API returned status %d", resp.StatusCode)
	}
	return nil
}
