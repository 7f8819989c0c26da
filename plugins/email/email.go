// Package email implements the built-in "email" plugin: Notify sends a
// release summary over SMTP. No mail-sending library exists anywhere in
// the retrieval pack, so this talks to the SMTP server directly over
// net/smtp — see DESIGN.md for the stdlib justification.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyNextVersion = "next_version"
	keyChangelog   = "changelog"
)

// Plugin is the built-in email plugin.
type Plugin struct {
	plugin.Base

	smtpHost string
	smtpPort string
	username string
	password string
	from     string
	to       []string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New constructs the email plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Notify},
			nil,
			[]string{keyNextVersion},
		),
		smtpPort: "587",
		sendMail: smtp.SendMail,
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["smtp_host"].(string); ok {
		p.smtpHost = v
	}
	if v, ok := subtable["smtp_port"].(string); ok && v != "" {
		p.smtpPort = v
	}
	if v, ok := subtable["username"].(string); ok {
		p.username = v
	}
	if v, ok := subtable["password"].(string); ok {
		p.password = v
	}
	if v, ok := subtable["from"].(string); ok {
		p.from = v
	}
	if raw, ok := subtable["to"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				p.to = append(p.to, s)
			}
		}
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.Notify {
		return plugin.Failed(fmt.Sprintf("email plugin does not implement step %s", step), true)
	}

	if p.smtpHost == "" || p.from == "" || len(p.to) == 0 {
		return plugin.Failed("email plugin is missing smtp_host, from, or to configuration", false)
	}

	nextVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", false)
	}
	next, err := nextVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), false)
	}

	body := fmt.Sprintf("Released %s", next.Raw)
	if cv, ok := store.Get(keyChangelog); ok {
		if changelog, err := cv.AsString(); err == nil && changelog != "" {
			body = fmt.Sprintf("%s\n\n%s", body, changelog)
		}
	}

	if err := p.send(next.Raw, body); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to send notification email: %v", err), false)
	}

	return plugin.OK(nil)
}

func (p *Plugin) send(version, body string) error {
	subject := fmt.Sprintf("Subject: Release %s\r\n", version)
	msg := []byte(subject + "\r\n" + body)

	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.smtpHost)
	}

	addr := fmt.Sprintf("%s:%s", p.smtpHost, p.smtpPort)
	return p.sendMail(addr, auth, p.from, p.to, msg)
}
