package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanteecore/forge-release/internal/state"
)

func TestStoreSetAndGet(t *testing.T) {
	s := state.New()
	assert.False(t, s.Has("last_version"))

	s.Set("last_version", state.Version(state.SemVer{Major: 1, Minor: 2, Patch: 3, Raw: "1.2.3"}))

	v, ok := s.Get("last_version")
	require.True(t, ok)

	ver, err := v.AsVersion()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ver.Major)
	assert.Equal(t, "1.2.3", ver.Raw)
}

func TestValueAccessorsRejectWrongKind(t *testing.T) {
	v := state.String("hello")

	_, err := v.AsVersion()
	assert.Error(t, err)

	_, err = v.AsStringList()
	assert.Error(t, err)

	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestRollbackTokensAreLIFO(t *testing.T) {
	s := state.New()
	s.Set("a", state.String("a-val"))
	s.Set(state.RollbackKey("plugin-one"), state.String("token-one"))
	s.Set("b", state.String("b-val"))
	s.Set(state.RollbackKey("plugin-two"), state.String("token-two"))

	tokens := s.RollbackTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, state.RollbackKey("plugin-two"), tokens[0].Key)
	assert.Equal(t, state.RollbackKey("plugin-one"), tokens[1].Key)
}

func TestSnapshotReflectsCurrentKeys(t *testing.T) {
	s := state.New()
	s.Set("x", state.Int(1))
	snap := s.Snapshot()
	_, ok := snap["x"]
	assert.True(t, ok)

	s.Set("y", state.Int(2))
	_, ok = snap["y"]
	assert.False(t, ok, "snapshot must not observe writes after it was taken")
}
