package config

import (
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/semanteecore/forge-release/internal/errors"
)

// document is the shape of the raw TOML configuration document (spec
// §6.1), decoded before normalization and validation split the strings
// and inline tables into the typed Configuration model.
type document struct {
	Plugins map[string]tomlLocation `toml:"plugins"`
	Steps   map[string]tomlBinding  `toml:"steps"`
	Cfg     map[string]interface{}  `toml:"cfg"`

	// pluginOrder records the plugins table's key order as it appears in
	// the source document (spec.md §4.3's discover-resolution order). It
	// is populated separately from the toml.Unmarshal pass, which decodes
	// the plugins table into a Go map and so loses declaration order.
	pluginOrder []string
}

// tomlLocation accepts either the short string form ("builtin") or the
// inline-table form ({ location = "builtin" }), per spec §6.1. The
// inline-table form may also carry an optional "schema" key: a CUE
// definition the plugin's cfg subtable must satisfy (validated by
// internal/cueschema).
type tomlLocation struct {
	raw   string
	table struct {
		Location string `toml:"location"`
		Schema   string `toml:"schema"`
	}
	isTable bool
}

// UnmarshalTOML converts one decoded plugins-table value (a string or a
// table) into a tomlLocation; parseDocument calls it for every entry.
func (l *tomlLocation) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		l.raw = val
		l.isTable = false
	case map[string]interface{}:
		if loc, ok := val["location"].(string); ok {
			l.table.Location = loc
		}
		if schema, ok := val["schema"].(string); ok {
			l.table.Schema = schema
		}
		l.isTable = true
	default:
		return errors.Newf(errors.CodeInvalidInput, "plugin location must be a string or table, got %T", v)
	}
	return nil
}

func (l tomlLocation) value() string {
	if l.isTable {
		return l.table.Location
	}
	return l.raw
}

// schema returns the plugin's optional CUE schema expression, or "" if
// the location was given in short-string form or omitted schema.
func (l tomlLocation) schema() string {
	if l.isTable {
		return l.table.Schema
	}
	return ""
}

// tomlBinding accepts a bare string ("plugin-id" or "discover") or an
// array of strings (ordered shared), per spec §6.1.
type tomlBinding struct {
	single string
	list   []string
	isList bool
}

// UnmarshalTOML converts one decoded steps-table value into the binding
// union; parseDocument calls it for every entry.
func (b *tomlBinding) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		b.single = val
		b.isList = false
	case []interface{}:
		b.isList = true
		b.list = make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return errors.Newf(errors.CodeInvalidInput, "step binding list entries must be strings, got %T", item)
			}
			b.list = append(b.list, s)
		}
	default:
		return errors.Newf(errors.CodeInvalidInput, "step binding must be a string or string array, got %T", v)
	}
	return nil
}

// parseDocument decodes raw TOML bytes into a document. It does not
// validate cross-references; that is Validate's job (spec §4.6).
func parseDocument(data []byte) (*document, error) {
	var raw struct{ Plugins, Steps, Cfg map[string]interface{} }
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse configuration document")
	}
	doc := document{Plugins: map[string]tomlLocation{}, Steps: map[string]tomlBinding{}, Cfg: raw.Cfg}
	for id, v := range raw.Plugins {
		var loc tomlLocation
		if err := loc.UnmarshalTOML(v); err != nil {
			return nil, err
		}
		doc.Plugins[id] = loc
	}
	for name, v := range raw.Steps {
		var b tomlBinding
		if err := b.UnmarshalTOML(v); err != nil {
			return nil, err
		}
		doc.Steps[name] = b
	}
	doc.pluginOrder = scanPluginOrder(data)
	return &doc, nil
}

// scanPluginOrder walks the raw document bytes and returns the plugins
// table's keys in source order. toml.Unmarshal decodes Plugins into a Go
// map, which has no order of its own, so declaration order (spec §4.3
// discover resolution) has to be recovered from the source text directly
// rather than from the decoded value.
//
// It supports both shapes the plugins table may take: a standalone
// "[plugins]" table with one key per line, and an inline
// "plugins = { ... }" table on a single line. Anything scanPluginOrder
// misses (malformed TOML, multi-line inline tables) is not fatal:
// pluginOrder falls back to appending any keys it missed, so the
// worst case is a partially-alphabetical tail rather than a rejected
// configuration.
func scanPluginOrder(data []byte) []string {
	var order []string
	lines := strings.Split(string(data), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "[plugins]" {
			for i++; i < len(lines); i++ {
				entry := stripInlineComment(lines[i])
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "[") {
					i--
					break
				}
				if key, ok := keyOf(entry); ok {
					order = append(order, key)
				}
			}
			continue
		}

		if strings.HasPrefix(line, "plugins") {
			if open := strings.Index(line, "{"); open >= 0 {
				if close := strings.LastIndex(line, "}"); close > open {
					order = append(order, inlineTableKeys(line[open+1:close])...)
				}
			}
		}
	}

	return order
}

// keyOf extracts the bare or quoted key from a "key = value" line.
func keyOf(line string) (string, bool) {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return "", false
	}
	key := strings.TrimSpace(line[:eq])
	key = strings.Trim(key, `"'`)
	if key == "" {
		return "", false
	}
	return key, true
}

// inlineTableKeys splits the body of an inline table ("a = 1, b = { ... }")
// into its top-level keys, in order, ignoring keys nested inside any
// inline sub-table.
func inlineTableKeys(body string) []string {
	var keys []string
	depth := 0
	start := 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || (body[i] == ',' && depth == 0) {
			if key, ok := keyOf(body[start:i]); ok {
				keys = append(keys, key)
			}
			start = i + 1
			continue
		}
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return keys
}

// stripInlineComment trims a trailing "# ..." comment, respecting quoted
// strings so a "#" inside a value isn't mistaken for a comment marker.
func stripInlineComment(line string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}

// Load reads path from filesystem, parses it as TOML, and validates the
// result into a frozen Configuration (spec §4.6).
func Load(filesystem ReadFS, path string, dryRun bool) (*Configuration, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidInput, "failed to read configuration file", map[string]interface{}{
			"path": path,
		})
	}

	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	cfg, err := Validate(doc)
	if err != nil {
		return nil, err
	}
	cfg.DryRun = dryRun
	return cfg, nil
}
