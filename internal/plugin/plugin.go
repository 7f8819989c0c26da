// Package plugin defines the uniform contract every release-pipeline
// plugin honors: method discovery, configuration injection, and
// provision/consumption declarations (spec §4.1).
package plugin

import (
	"context"

	"github.com/semanteecore/forge-release/internal/state"
)

// Step identifies one of the nine fixed, ordered pipeline stages. Order is
// total and never configurable (spec §3).
type Step string

// The canonical step identifiers, in their fixed execution order.
const (
	PreFlight         Step = "pre_flight"
	GetLastRelease    Step = "get_last_release"
	DeriveNextVersion Step = "derive_next_version"
	GenerateNotes     Step = "generate_notes"
	Prepare           Step = "prepare"
	VerifyRelease     Step = "verify_release"
	Commit            Step = "commit"
	Publish           Step = "publish"
	Notify            Step = "notify"
)

// Order is the canonical, total ordering of pipeline steps. Nothing in the
// system may reorder this slice.
var Order = []Step{
	PreFlight,
	GetLastRelease,
	DeriveNextVersion,
	GenerateNotes,
	Prepare,
	VerifyRelease,
	Commit,
	Publish,
	Notify,
}

// SingletonOnly is the set of steps that accept only a Singleton binding
// (spec §3 invariant).
var SingletonOnly = map[Step]bool{
	GetLastRelease: true,
	Commit:         true,
}

// EffectfulInDryRun is the set of steps dry-run mode forbids from
// executing (spec §3, §4.5).
var EffectfulInDryRun = map[Step]bool{
	Commit:  true,
	Publish: true,
	Notify:  true,
}

// FatalRequired is the set of steps where any plugin failure — fatal or
// not — halts the pipeline (spec §4.5 step 3, §7).
var FatalRequired = map[Step]bool{
	PreFlight:         true,
	GetLastRelease:    true,
	DeriveNextVersion: true,
	Prepare:           true,
	VerifyRelease:     true,
	Commit:            true,
	Publish:           true,
}

// IsKnown reports whether s is one of the nine canonical steps.
func IsKnown(s Step) bool {
	for _, known := range Order {
		if known == s {
			return true
		}
	}
	return false
}

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind int

const (
	// OutcomeOK indicates the handler succeeded and produced writes.
	OutcomeOK OutcomeKind = iota
	// OutcomeSkipped indicates the plugin considered the step a no-op for
	// this run.
	OutcomeSkipped
	// OutcomeFailed indicates the handler failed.
	OutcomeFailed
)

// Outcome is the result of invoking a plugin's handler for a step (spec
// §4.1 run_step).
type Outcome struct {
	Kind   OutcomeKind
	Writes map[string]state.Value
	Reason string
	Fatal  bool
}

// OK constructs a successful Outcome carrying writes.
func OK(writes map[string]state.Value) Outcome {
	return Outcome{Kind: OutcomeOK, Writes: writes}
}

// Skipped constructs an Outcome indicating the plugin skipped this step.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// Failed constructs a failure Outcome.
func Failed(reason string, fatal bool) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason, Fatal: fatal}
}

// Plugin is the uniform contract every release-pipeline plugin honors
// (spec §4.1). A plugin must be side-effect-free until Configure succeeds.
// Invoking RunStep for a step not in Methods() is a programmer error the
// runner guarantees cannot happen.
type Plugin interface {
	// ID returns the plugin's configured identifier.
	ID() string

	// Methods returns the set of steps this plugin implements.
	Methods() map[Step]bool

	// ProvisionCapabilities returns the set of keys this plugin may
	// write to the State Store.
	ProvisionCapabilities() map[string]bool

	// RequiredCapabilities returns the set of keys this plugin needs
	// present in the State Store before any of its step handlers run.
	RequiredCapabilities() map[string]bool

	// Configure is called once with the plugin's cfg subtable. It must
	// validate and store the subtable internally, returning a
	// *errors.Error with CodeBadConfig on invalid input.
	Configure(subtable map[string]interface{}) error

	// RunStep executes the handler for step against store, returning the
	// plugin's Outcome. The runner guarantees step is always one this
	// plugin reported in Methods().
	RunStep(ctx context.Context, step Step, store *state.Store) Outcome

	// Close releases any resources the plugin holds (file handles,
	// subprocess handles, network connections). Called once at pipeline
	// end or abort (spec §5 Resource lifecycle).
	Close() error
}

// Base provides a zero-value-safe embeddable implementation of the parts
// of Plugin most built-ins share, so concrete plugins only need to
// implement RunStep (and usually Configure).
type Base struct {
	id       string
	methods  map[Step]bool
	provides map[string]bool
	requires map[string]bool
}

// NewBase constructs a Base plugin skeleton.
func NewBase(id string, methods []Step, provides, requires []string) Base {
	b := Base{
		id:       id,
		methods:  make(map[Step]bool, len(methods)),
		provides: make(map[string]bool, len(provides)),
		requires: make(map[string]bool, len(requires)),
	}
	for _, m := range methods {
		b.methods[m] = true
	}
	for _, k := range provides {
		b.provides[k] = true
	}
	for _, k := range requires {
		b.requires[k] = true
	}
	return b
}

// ID implements Plugin.
func (b Base) ID() string { return b.id }

// Methods implements Plugin.
func (b Base) Methods() map[Step]bool { return b.methods }

// ProvisionCapabilities implements Plugin.
func (b Base) ProvisionCapabilities() map[string]bool { return b.provides }

// RequiredCapabilities implements Plugin.
func (b Base) RequiredCapabilities() map[string]bool { return b.requires }

// Configure implements a no-op default; plugins with real configuration
// needs override it.
func (b Base) Configure(map[string]interface{}) error { return nil }

// Close implements a no-op default; plugins holding resources override
// it.
func (b Base) Close() error { return nil }
