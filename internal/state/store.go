// Package state implements the process-local, string-keyed State Store that
// threads plugin-written values through a pipeline run.
package state

import (
	"fmt"
	"sync"

	"github.com/semanteecore/forge-release/internal/errors"
)

// Kind tags the concrete type carried by a Value.
type Kind int

const (
	// KindString holds a plain string.
	KindString Kind = iota
	// KindInt holds an integer.
	KindInt
	// KindSemVer holds a semantic version triple.
	KindSemVer
	// KindStringList holds an ordered list of strings.
	KindStringList
	// KindBlob holds an opaque structured payload (e.g. a decoded JSON
	// document produced by a plugin for consumption by another plugin).
	KindBlob
)

// SemVer is the semantic-version triple transported through the store. It
// intentionally carries only the fields the orchestrator itself inspects;
// plugins that need full semver semantics (pre-release, build metadata)
// carry those in the Raw field.
type SemVer struct {
	Major, Minor, Patch uint64
	Raw                 string
}

// Value is the tagged union of types a plugin may write to the State
// Store. Exactly one of the typed accessors is meaningful, selected by
// Kind.
type Value struct {
	Kind    Kind
	Str     string
	Int     int64
	Ver     SemVer
	StrList []string
	Blob    interface{}
}

// String constructs a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int constructs an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Version constructs a semantic-version Value.
func Version(v SemVer) Value { return Value{Kind: KindSemVer, Ver: v} }

// StringList constructs a string-list Value.
func StringList(list []string) Value { return Value{Kind: KindStringList, StrList: list} }

// Blob constructs an opaque blob Value.
func Blob(v interface{}) Value { return Value{Kind: KindBlob, Blob: v} }

// AsString returns the string payload, or an error if the Value is not a
// string.
func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", errors.Newf(errors.CodeInvalidInput, "value is not a string (kind=%d)", v.Kind)
	}
	return v.Str, nil
}

// AsVersion returns the semver payload, or an error if the Value is not a
// version.
func (v Value) AsVersion() (SemVer, error) {
	if v.Kind != KindSemVer {
		return SemVer{}, errors.Newf(errors.CodeInvalidInput, "value is not a semver (kind=%d)", v.Kind)
	}
	return v.Ver, nil
}

// AsStringList returns the string-list payload, or an error if the Value
// is not a string list.
func (v Value) AsStringList() ([]string, error) {
	if v.Kind != KindStringList {
		return nil, errors.Newf(errors.CodeInvalidInput, "value is not a string list (kind=%d)", v.Kind)
	}
	return v.StrList, nil
}

// Store is the single-writer-at-a-time key-value map threading state
// between plugins and steps. Reads are monotonic: a key, once written, may
// be overwritten but is never removed mid-pipeline (see spec §4.7).
//
// The zero value is not usable; construct with New.
type Store struct {
	mu     sync.RWMutex
	values map[string]Value
	// order records insertion order of keys, used to produce a
	// deterministic rollback-token replay order (LIFO).
	order []string
}

// New creates an empty Store, ready for one pipeline run.
func New() *Store {
	return &Store{values: make(map[string]Value)}
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present in the store.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Set writes key to value, overwriting any previous value. This is the
// only mutator; it is called exclusively by the runner merging a plugin's
// reported writes (see spec §4.5 step 3).
func (s *Store) Set(key string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.values[key]; !existed {
		s.order = append(s.order, key)
	}
	s.values[key] = v
}

// SetAll merges writes into the store, in map iteration order. Callers
// that need a deterministic merge order should call Set directly.
func (s *Store) SetAll(writes map[string]Value) {
	for k, v := range writes {
		s.Set(k, v)
	}
}

// Snapshot returns a shallow copy of the current key set, suitable for
// the planner to reason about which keys are "already in the store at the
// start of step S" (spec §4.4 step 2).
func (s *Store) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.values))
	for k := range s.values {
		out[k] = struct{}{}
	}
	return out
}

// RollbackKey returns the dedicated State Store key a plugin must use to
// publish a rollback token, per spec §4.1.
func RollbackKey(pluginID string) string {
	return fmt.Sprintf("rollback.%s", pluginID)
}

// RollbackTokens returns every rollback token currently in the store, in
// the LIFO order required by spec §4.5 Rollback (reverse of capture
// order).
func (s *Store) RollbackTokens() []RollbackToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tokens []RollbackToken
	for i := len(s.order) - 1; i >= 0; i-- {
		key := s.order[i]
		if len(key) <= len("rollback.") || key[:len("rollback.")] != "rollback." {
			continue
		}
		v := s.values[key]
		tokens = append(tokens, RollbackToken{Key: key, Value: v})
	}
	return tokens
}

// RollbackToken pairs a rollback.<plugin> key with the Value a plugin
// stored there, ready for the runner to hand back to the plugin's
// Restore method.
type RollbackToken struct {
	Key   string
	Value Value
}
