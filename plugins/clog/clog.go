// Package clog implements the built-in "clog" plugin: GenerateNotes walks
// the commits since the last release tag, classifies each with
// conventional-commit parsing, and produces changelog text plus the
// semver bump level DeriveNextVersion consumes. Grounded on
// catalyst-forge-libs/git's go-git/v5 dependency for repository walking
// and go-conventionalcommits for message classification.
package clog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	cc "github.com/leodido/go-conventionalcommits"
	ccparser "github.com/leodido/go-conventionalcommits/parser"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyLastTag   = "last_tag"
	keyChangelog = "changelog"
	keyBumpLevel = "bump_level"
)

// BumpLevel classifies the magnitude of change found since the last
// release.
type BumpLevel string

const (
	// BumpNone indicates no release-worthy commits were found.
	BumpNone BumpLevel = "none"
	// BumpPatch indicates only fixes were found.
	BumpPatch BumpLevel = "patch"
	// BumpMinor indicates at least one feature was found.
	BumpMinor BumpLevel = "minor"
	// BumpMajor indicates at least one breaking change was found.
	BumpMajor BumpLevel = "major"
)

// Plugin is the built-in clog plugin.
type Plugin struct {
	plugin.Base

	repoPath string
}

// New constructs the clog plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.GenerateNotes},
			[]string{keyChangelog, keyBumpLevel},
			nil,
		),
		repoPath: ".",
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["path"].(string); ok && v != "" {
		p.repoPath = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.GenerateNotes {
		return plugin.Failed(fmt.Sprintf("clog plugin does not implement step %s", step), true)
	}

	repo, err := git.PlainOpen(p.repoPath)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to open git repository: %v", err), false)
	}

	head, err := repo.Head()
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to resolve HEAD: %v", err), false)
	}

	var since *plumbing.Hash
	if tagVal, ok := store.Get(keyLastTag); ok {
		if tagName, err := tagVal.AsString(); err == nil && tagName != "" {
			if ref, err := repo.Tag(tagName); err == nil {
				if commit, err := repo.CommitObject(ref.Hash()); err == nil {
					h := commit.Hash
					since = &h
				}
			}
		}
	}

	commits, err := walkCommits(repo, head.Hash(), since)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to walk commit log: %v", err), false)
	}

	changelog, bump := classify(commits)

	return plugin.OK(map[string]state.Value{
		keyChangelog: state.String(changelog),
		keyBumpLevel: state.String(string(bump)),
	})
}

func walkCommits(repo *git.Repository, from plumbing.Hash, stopAt *plumbing.Hash) ([]*object.Commit, error) {
	iter, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if stopAt != nil && c.Hash == *stopAt {
			return errStopWalk
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, err
	}
	return commits, nil
}

var errStopWalk = errors.New("stop walk: reached last release tag")

// classify parses each commit's message as a conventional commit and
// builds grouped changelog text plus the overall bump level.
func classify(commits []*object.Commit) (string, BumpLevel) {
	var breaking, features, fixes, other []string
	machine := ccparser.NewMachine(cc.WithTypes(cc.TypesConventional))

	for _, c := range commits {
		message := strings.TrimSpace(c.Message)
		summary := firstLine(message)

		parsed, err := machine.Parse([]byte(message))
		if err != nil {
			other = append(other, summary)
			continue
		}

		conv, ok := parsed.(*cc.ConventionalCommit)
		if !ok {
			other = append(other, summary)
			continue
		}

		entry := fmt.Sprintf("%s (%s)", conv.Description, c.Hash.String()[:7])
		switch {
		case isBreaking(conv):
			breaking = append(breaking, entry)
		case conv.Type == "feat":
			features = append(features, entry)
		case conv.Type == "fix":
			fixes = append(fixes, entry)
		default:
			other = append(other, entry)
		}
	}

	bump := BumpNone
	switch {
	case len(breaking) > 0:
		bump = BumpMajor
	case len(features) > 0:
		bump = BumpMinor
	case len(fixes) > 0:
		bump = BumpPatch
	}

	return render(breaking, features, fixes), bump
}

func isBreaking(conv *cc.ConventionalCommit) bool {
	if conv.Exclamation {
		return true
	}
	for key := range conv.Footers {
		if strings.EqualFold(key, "BREAKING-CHANGE") || strings.EqualFold(key, "BREAKING CHANGE") {
			return true
		}
	}
	return false
}

func render(breaking, features, fixes []string) string {
	var b strings.Builder
	writeSection(&b, "BREAKING CHANGES", breaking)
	writeSection(&b, "Features", features)
	writeSection(&b, "Bug Fixes", fixes)
	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
