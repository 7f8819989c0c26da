// Command forge-release runs the release pipeline described by a TOML
// configuration file. The CLI surface itself is intentionally thin (spec
// §6.2 scopes it to a single flag and an exit-code contract); flag
// parsing uses the standard library since nothing in the retrieval pack
// supplies a CLI framework — see DESIGN.md.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/semanteecore/forge-release/internal/config"
	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
	"github.com/semanteecore/forge-release/internal/runner"
	"github.com/semanteecore/forge-release/plugins/awssecrets"
	"github.com/semanteecore/forge-release/plugins/clog"
	"github.com/semanteecore/forge-release/plugins/email"
	"github.com/semanteecore/forge-release/plugins/git"
	"github.com/semanteecore/forge-release/plugins/github"
	"github.com/semanteecore/forge-release/plugins/npm"
	"github.com/semanteecore/forge-release/plugins/ocipublish"
	"github.com/semanteecore/forge-release/plugins/rust"
	"github.com/semanteecore/forge-release/plugins/semverbump"
	"github.com/semanteecore/forge-release/plugins/slack"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("forge-release", flag.ContinueOnError)
	configPath := fs.String("config", "release.toml", "path to the release configuration file")
	dryRun := fs.Bool("dry", false, "run the pipeline without executing Commit, Publish, or Notify")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(config.NewOSFS("."), *configPath, *dryRun)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		return 2
	}

	plugins, err := buildPlugins(cfg)
	if err != nil {
		logger.Error("failed to construct plugins", slog.String("error", err.Error()))
		return 2
	}
	defer closeAll(plugins, logger)

	reg := registry.Build(plugins, logger)

	runID := uuid.NewString()
	pipeline, err := runner.New(cfg, reg, logger, runID)
	if err != nil {
		logger.Error("failed to prepare pipeline", slog.String("error", err.Error()))
		return exitCodeFor(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeCancelled {
			logger.Warn("pipeline cancelled")
			return 130
		}
		logger.Error("pipeline aborted", slog.String("step", string(result.Step)), slog.String("reason", result.Reason))
		return exitCodeFor(err)
	}

	for _, release := range result.Releases {
		logger.Info("release published", slog.String("version", release.Version))
	}
	logger.Info("pipeline completed")
	return 0
}

// builtins maps every plugin-id a release.toml may declare with
// location = "builtin" to its constructor.
var builtins = map[string]func(id string) plugin.Plugin{
	"git":        func(id string) plugin.Plugin { return git.New(id) },
	"clog":       func(id string) plugin.Plugin { return clog.New(id) },
	"semverbump": func(id string) plugin.Plugin { return semverbump.New(id) },
	"awssecrets": func(id string) plugin.Plugin { return awssecrets.New(id) },
	"ocipublish": func(id string) plugin.Plugin { return ocipublish.New(id) },
	"rust":       func(id string) plugin.Plugin { return rust.New(id) },
	"npm":        func(id string) plugin.Plugin { return npm.New(id) },
	"slack":      func(id string) plugin.Plugin { return slack.New(id) },
	"email":      func(id string) plugin.Plugin { return email.New(id) },
	"github":     func(id string) plugin.Plugin { return github.New(id) },
}

func buildPlugins(cfg *config.Configuration) ([]plugin.Plugin, error) {
	ids := cfg.ListPlugins()
	plugins := make([]plugin.Plugin, 0, len(ids))
	for _, id := range ids {
		ctor, ok := builtins[id]
		if !ok {
			return nil, errors.Newf(errors.CodeUnknownPlugin, "no builtin implementation registered for plugin id %q", id)
		}
		p := ctor(id)
		if err := p.Configure(cfg.CfgFor(id)); err != nil {
			return nil, errors.Wrap(err, errors.CodeBadConfig, fmt.Sprintf("plugin %q rejected its configuration", id))
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func closeAll(plugins []plugin.Plugin, logger *slog.Logger) {
	for _, p := range plugins {
		if err := p.Close(); err != nil {
			logger.Warn("plugin failed to close cleanly", slog.String("plugin", p.ID()), slog.String("error", err.Error()))
		}
	}
}

func exitCodeFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeUnknownStep, errors.CodeUnknownPlugin, errors.CodeUnsupportedLocation,
		errors.CodeBindingIllegalForStep, errors.CodeDuplicateBinding, errors.CodeBadConfig:
		return 2
	case errors.CodeMissingCapability, errors.CodeSingletonStepCannotShare, errors.CodeDiscoverIllegalForSingleton:
		return 3
	case errors.CodeCycle, errors.CodeUnsatisfiedRequirement:
		return 4
	case errors.CodeCancelled:
		return 130
	default:
		return 1
	}
}
