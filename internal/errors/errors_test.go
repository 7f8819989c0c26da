package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/semanteecore/forge-release/internal/errors"
)

func TestNewAndError(t *testing.T) {
	err := ferrors.New(ferrors.CodeCycle, "cycle detected")
	assert.Equal(t, "DEPENDENCY_CYCLE: cycle detected", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := ferrors.Wrap(cause, ferrors.CodeExecutionFailed, "command failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, ferrors.CodeExecutionFailed, ferrors.CodeOf(err))
}

func TestWrapWithContext(t *testing.T) {
	cause := errors.New("disk full")
	err := ferrors.WrapWithContext(cause, ferrors.CodeInvalidInput, "write failed", map[string]interface{}{
		"path": "/tmp/x",
	})

	require.NotNil(t, err.Context)
	assert.Equal(t, "/tmp/x", err.Context["path"])
}

func TestIsMatchesByCode(t *testing.T) {
	a := ferrors.New(ferrors.CodeCycle, "first")
	b := ferrors.New(ferrors.CodeCycle, "second")
	c := ferrors.New(ferrors.CodeInternal, "third")

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestCodeOfUnknownForPlainError(t *testing.T) {
	assert.Equal(t, ferrors.ErrorCode("UNKNOWN"), ferrors.CodeOf(errors.New("plain")))
}
