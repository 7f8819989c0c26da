package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

func TestNotifySendsReleaseEmail(t *testing.T) {
	var capturedAddr, capturedFrom string
	var capturedTo []string
	var capturedMsg []byte

	p := New("email")
	require.NoError(t, p.Configure(map[string]interface{}{
		"smtp_host": "smtp.example.com",
		"from":      "releases@example.com",
		"to":        []interface{}{"team@example.com"},
	}))
	p.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		capturedAddr, capturedFrom, capturedTo, capturedMsg = addr, from, to, msg
		return nil
	}

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))
	store.Set("changelog", state.String("- fix: patch a leak"))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeOK, outcome.Kind)

	assert.Equal(t, "smtp.example.com:587", capturedAddr)
	assert.Equal(t, "releases@example.com", capturedFrom)
	assert.Equal(t, []string{"team@example.com"}, capturedTo)
	assert.Contains(t, string(capturedMsg), "Release 1.0.0")
	assert.Contains(t, string(capturedMsg), "patch a leak")
}

func TestNotifyIsNonFatalWithIncompleteConfiguration(t *testing.T) {
	p := New("email")
	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Fatal)
}

func TestNotifyIsNonFatalOnSendFailure(t *testing.T) {
	p := New("email")
	require.NoError(t, p.Configure(map[string]interface{}{
		"smtp_host": "smtp.example.com",
		"from":      "releases@example.com",
		"to":        []interface{}{"team@example.com"},
	}))
	p.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return assert.AnError
	}

	store := state.New()
	store.Set("next_version", state.Version(state.SemVer{Raw: "1.0.0"}))

	outcome := p.RunStep(context.Background(), plugin.Notify, store)
	require.Equal(t, plugin.OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Fatal)
}
