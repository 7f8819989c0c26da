package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
	"github.com/semanteecore/forge-release/plugins/slack"
)

func TestNotifyPostsReleaseSummary(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := slack.New("slack")
	require.NoError(t, p.Configure(map[string]interface{}{"webhook_url": server.URL, "channel": "#releases"}))

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))
	store.Set("changelog", state.String("- feat: add widgets"))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeOK, outcome.Kind)

	assert.Contains(t, received["text"], "Released 1.0.0")
	assert.Contains(t, received["text"], "add widgets")
	assert.Equal(t, "#releases", received["channel"])
}

func TestNotifyIsNonFatalWithoutWebhookURL(t *testing.T) {
	p := slack.New("slack")

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Fatal)
}

func TestNotifyIsNonFatalOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := slack.New("slack")
	require.NoError(t, p.Configure(map[string]interface{}{"webhook_url": server.URL}))

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Fatal)
}
