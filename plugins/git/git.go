// Package git implements the built-in "git" plugin: GetLastRelease reads
// the most recent semantic-version tag, and Commit stages, commits, and
// tags the release. Grounded on catalyst-forge-libs/git's use of
// go-git/v5 for repository access.
package git

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyLastVersion = "last_version"
	keyLastTag     = "last_tag"
	keyNextVersion = "next_version"
	keyChangelog   = "changelog"
	keyCommitFiles = "commit_files"
)

// Plugin is the built-in git plugin.
type Plugin struct {
	plugin.Base

	repoPath   string
	tagPrefix  string
	authorName string
	authorMail string
}

// New constructs the git plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.GetLastRelease, plugin.Commit},
			[]string{keyLastVersion, keyLastTag},
			nil,
		),
		repoPath:   ".",
		tagPrefix:  "v",
		authorName: "forge-release",
		authorMail: "forge-release@localhost",
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["path"].(string); ok && v != "" {
		p.repoPath = v
	}
	if v, ok := subtable["tag_prefix"].(string); ok {
		p.tagPrefix = v
	}
	if v, ok := subtable["author_name"].(string); ok && v != "" {
		p.authorName = v
	}
	if v, ok := subtable["author_email"].(string); ok && v != "" {
		p.authorMail = v
	}
	return nil
}

// RequiredCapabilities is empty. The planner applies a plugin's required
// set to every step it handles, and GetLastRelease runs before any
// next_version exists; Commit's RunStep checks for next_version itself
// and fails fatally when it is absent.
func (p *Plugin) RequiredCapabilities() map[string]bool {
	return map[string]bool{}
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	switch step {
	case plugin.GetLastRelease:
		return p.getLastRelease()
	case plugin.Commit:
		return p.commit(store)
	default:
		return plugin.Failed(fmt.Sprintf("git plugin does not implement step %s", step), true)
	}
}

func (p *Plugin) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.repoPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, "failed to open git repository")
	}
	return repo, nil
}

func (p *Plugin) getLastRelease() plugin.Outcome {
	repo, err := p.open()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	tagRefs, err := repo.Tags()
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to list tags: %v", err), true)
	}

	var versions []*semver.Version
	byVersion := map[string]string{}
	_ = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		name := strings.TrimPrefix(ref.Name().Short(), p.tagPrefix)
		v, parseErr := semver.NewVersion(name)
		if parseErr != nil {
			return nil
		}
		versions = append(versions, v)
		byVersion[v.String()] = ref.Name().Short()
		return nil
	})

	if len(versions) == 0 {
		// No prior release: 0.0.0 is the implicit last version, letting
		// DeriveNextVersion produce an initial release.
		return plugin.OK(map[string]state.Value{
			keyLastVersion: state.Version(state.SemVer{Raw: "0.0.0"}),
		})
	}

	sort.Sort(semver.Collection(versions))
	latest := versions[len(versions)-1]

	return plugin.OK(map[string]state.Value{
		keyLastVersion: state.Version(state.SemVer{
			Major: latest.Major(),
			Minor: latest.Minor(),
			Patch: latest.Patch(),
			Raw:   latest.String(),
		}),
		keyLastTag: state.String(byVersion[latest.String()]),
	})
}

func (p *Plugin) commit(store *state.Store) plugin.Outcome {
	nextVersionVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", true)
	}
	nextVersion, err := nextVersionVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	repo, err := p.open()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to get worktree: %v", err), true)
	}

	files := defaultCommitFiles
	if fv, ok := store.Get(keyCommitFiles); ok {
		if list, err := fv.AsStringList(); err == nil {
			files = list
		}
	}
	for _, f := range files {
		if _, err := wt.Add(f); err != nil {
			continue
		}
	}

	message := fmt.Sprintf("chore(release): %s", nextVersion.Raw)
	if cv, ok := store.Get(keyChangelog); ok {
		if text, err := cv.AsString(); err == nil && text != "" {
			message = fmt.Sprintf("%s\n\n%s", message, text)
		}
	}

	sig := &object.Signature{Name: p.authorName, Email: p.authorMail, When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig})
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to commit: %v", err), true)
	}

	tagName := p.tagPrefix + nextVersion.Raw
	if _, err := repo.CreateTag(tagName, hash, &git.CreateTagOptions{Tagger: sig, Message: tagName}); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to tag %s: %v", tagName, err), true)
	}

	return plugin.OK(map[string]state.Value{})
}

// defaultCommitFiles is staged when the Prepare stage did not provision
// an explicit commit_files list.
var defaultCommitFiles = []string{"."}
