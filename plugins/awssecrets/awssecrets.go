// Package awssecrets implements the built-in "awssecrets" plugin:
// PreFlight resolves a configured set of secrets from AWS Secrets Manager
// and writes each as a string state value under its configured state key,
// where later plugins can read it. Grounded on
// catalyst-forge-libs/secrets/providers/aws's just-in-time SDK v2 client
// construction and ResourceNotFoundException mapping.
package awssecrets

import (
	"context"
	stderrors "errors"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/state"
)

// secretsManagerAPI mirrors the subset of AWS Secrets Manager operations
// the plugin calls, allowing a fake client in tests.
type secretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// secretSpec binds one AWS Secrets Manager secret to a state key.
type secretSpec struct {
	StateKey string
	SecretID string
	Required bool
}

// Plugin is the built-in awssecrets plugin.
type Plugin struct {
	plugin.Base

	region  string
	secrets []secretSpec

	newClient func(ctx context.Context, region string) (secretsManagerAPI, error)
}

// New constructs the awssecrets plugin with identifier id.
func New(id string) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(id,
			[]plugin.Step{plugin.PreFlight},
			nil,
			nil,
		),
		newClient: defaultClient,
	}
}

// Configure implements plugin.Plugin. The "secrets" table maps state keys
// to AWS secret IDs, or to {id, required} tables when a secret is
// optional. region overrides the SDK's default region resolution.
func (p *Plugin) Configure(subtable map[string]interface{}) error {
	if v, ok := subtable["region"].(string); ok && v != "" {
		p.region = v
	}

	raw, ok := subtable["secrets"].(map[string]interface{})
	if !ok {
		return nil
	}

	for stateKey, v := range raw {
		spec := secretSpec{StateKey: stateKey, Required: true}
		switch value := v.(type) {
		case string:
			spec.SecretID = value
		case map[string]interface{}:
			if id, ok := value["id"].(string); ok {
				spec.SecretID = id
			}
			if req, ok := value["required"].(bool); ok {
				spec.Required = req
			}
		default:
			return errors.Newf(errors.CodeBadConfig, "awssecrets: invalid entry for %q", stateKey)
		}
		if spec.SecretID == "" {
			return errors.Newf(errors.CodeBadConfig, "awssecrets: %q has no secret id", stateKey)
		}
		p.secrets = append(p.secrets, spec)
		p.ProvisionCapabilities()[stateKey] = true
	}

	return nil
}

// RunStep implements plugin.Plugin.
func (p *Plugin) RunStep(ctx context.Context, step plugin.Step, store *state.Store) plugin.Outcome {
	if step != plugin.PreFlight {
		return plugin.Failed(fmt.Sprintf("awssecrets plugin does not implement step %s", step), true)
	}

	client, err := p.newClient(ctx, p.region)
	if err != nil {
		return plugin.Failed(fmt.Sprintf("failed to initialize AWS Secrets Manager client: %v", err), true)
	}

	writes := map[string]state.Value{}
	for _, spec := range p.secrets {
		value, err := resolve(ctx, client, spec.SecretID)
		if err != nil {
			if spec.Required {
				return plugin.Failed(
					fmt.Sprintf("required secret %q (%s) could not be resolved: %v", spec.StateKey, spec.SecretID, err),
					true,
				)
			}
			continue
		}
		writes[spec.StateKey] = state.String(value)
	}

	return plugin.OK(writes)
}

func resolve(ctx context.Context, client secretsManagerAPI, secretID string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretID})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if stderrors.As(err, &notFound) {
			return "", errors.Newf(errors.CodeInvalidInput, "secret %q not found", secretID)
		}
		return "", errors.Wrap(err, errors.CodeNetwork, "failed to call GetSecretValue")
	}

	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), nil
	default:
		return "", errors.Newf(errors.CodeInternal, "secret %q has no value", secretID)
	}
}

func defaultClient(ctx context.Context, region string) (secretsManagerAPI, error) {
	opts := []func(*awscfg.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return secretsmanager.NewFromConfig(cfg), nil
}
