// Package slack implements the built-in "slack" plugin: Notify posts a
// release summary to a Slack incoming webhook. No webhook client exists
// anywhere in the retrieval pack, so this talks to Slack directly over
// net/http — see DESIGN.md for the stdlib justification.
package slack

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
)

// Plugin is the built-in slack plugin.
type Plugin struct {
	plugin.Base

	webhookURL string
	channel    string
	client     *http.Client
}

// New constructs the slack plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Notify},
			nil,
			[]string{keyNextVersion},
		),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["webhook_url"].(string); ok {
		p.webhookURL = v
	}
	if v, ok := subtable["channel"].(string); ok {
		p.channel = v
	}
	return nil
}

// RunStep implements plugin.Plugin. A notification failure is non-fatal
// by Notify's FatalRequired exclusion, but this handler also reports it
// as such explicitly so partial configuration degrades gracefully.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.Notify {
		return plugin.Failed(fmt.Sprintf("slack plugin does not implement step %s", step), true)
	}

	if p.webhookURL == "" {
		return plugin.Failed("slack plugin has no webhook_url configured", false)
	}

	nextVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", false)
	}
	next, err := nextVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), false)
	}

	text := fmt.Sprintf("Released %s", next.Raw)
	if cv, ok := store.Get(keyChangelog); ok {
		if changelog, err := cv.AsString(); err == nil && changelog != "" {
			text = fmt.Sprintf("%s\n%s", text, changelog)
		}
	}

	if err := p.post(ctx, text); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to post to slack: %v", err), false)
	}

	return plugin.OK(nil)
}

func (p *Plugin) post(ctx context.Context, text string) error {
	payload := map[string]string{"text": text}
	if p.channel != "" {
		payload["channel"] = p.channel
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
