// Package ocipublish implements the built-in "ocipublish" plugin: Publish
// pushes a release artifact to an OCI registry tagged with next_version.
// Grounded on catalyst-forge-libs/oci's internal/oras client, which wraps
// oras.land/oras-go/v2 for manifest packing and tagging.
package ocipublish

import (
	"context"
	"fmt"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

const (
	keyNextVersion  = "next_version"
	keyOCIReference = "oci_reference"

	defaultArtifactType = "application/vnd.forge-release.artifact.v1"
)

// Plugin is the built-in ocipublish plugin.
type Plugin struct {
	plugin.Base

	registry   string
	repository string
	artifact   string
	username   string
	password   string
}

// New constructs the ocipublish plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.Publish},
			[]string{keyOCIReference},
			[]string{keyNextVersion},
		),
	}
}

// Configure implements plugin.Plugin.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["registry"].(string); ok {
		p.registry = v
	}
	if v, ok := subtable["repository"].(string); ok {
		p.repository = v
	}
	if v, ok := subtable["artifact"].(string); ok {
		p.artifact = v
	}
	if v, ok := subtable["username"].(string); ok {
		p.username = v
	}
	if v, ok := subtable["password"].(string); ok {
		p.password = v
	}
	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.Publish {
		return plugin.Failed(fmt.Sprintf("ocipublish plugin does not implement step %s", step), true)
	}

	nextVal, ok := store.Get(keyNextVersion)
	if !ok {
		return plugin.Failed("next_version is not present in the state store", true)
	}
	next, err := nextVal.AsVersion()
	if err != nil {
		return plugin.Failed(err.Error(), true)
	}

	if p.registry == "" || p.repository == "" {
		return plugin.Failed("ocipublish requires registry and repository to be configured", true)
	}

	data, err := os.ReadFile(p.artifact)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to read artifact %q: %v", p.artifact, err), true)
	}

	reference := fmt.Sprintf("%s/%s:%s", p.registry, p.repository, next.Raw)
	if err := p.push(ctx, reference, data); err != nil {
		return plugin.Failed(fmt.Sprintf("failed to push %s: %v", reference, err), true)
	}

	return plugin.OK(map[string]state.Value{
		keyOCIReference: state.String(reference),
	})
}

func (p *Plugin) push(ctx context.Context, reference string, data []byte) error {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", p.registry, p.repository))
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	if p.username != "" {
		repo.Client = &auth.Client{
			Credential: auth.StaticCredential(p.registry, auth.Credential{
				Username: p.username,
				Password: p.password,
			}),
		}
	}

	blobDesc, err := oras.PushBytes(ctx, repo, defaultArtifactType, data)
	if err != nil {
		return fmt.Errorf("push blob: %w", err)
	}

	packOpts := oras.PackManifestOptions{Layers: []ocispec.Descriptor{blobDesc}}
	manDesc, err := oras.PackManifest(ctx, repo, oras.PackManifestVersion1_1, defaultArtifactType, packOpts)
	if err != nil {
		return fmt.Errorf("pack manifest: %w", err)
	}

	if _, err := oras.Tag(ctx, repo, manDesc.Digest.String(), tagOf(reference)); err != nil {
		return fmt.Errorf("tag manifest: %w", err)
	}

	return nil
}

func tagOf(reference string) string {
	for i := len(reference) - 1; i >= 0; i-- {
		if reference[i] == ':' {
			return reference[i+1:]
		}
		if reference[i] == '/' {
			break
		}
	}
	return "latest"
}
