package cueschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semanteecore/forge-release/internal/cueschema"
	"github.com/semanteecore/forge-release/internal/errors"
)

func TestValidateEmptySchemaAlwaysPasses(t *testing.T) {
	assert.NoError(t, cueschema.Validate("", map[string]interface{}{"anything": true}))
}

func TestValidateAcceptsConformingSubtable(t *testing.T) {
	schema := `{ token: string, timeout?: int }`
	err := cueschema.Validate(schema, map[string]interface{}{"token": "abc"})
	assert.NoError(t, err)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	schema := `{ token: string }`
	err := cueschema.Validate(schema, map[string]interface{}{})
	assert.Error(t, err)
	assert.Equal(t, errors.CodeBadConfig, errors.CodeOf(err))
}

func TestValidateRejectsInvalidSchema(t *testing.T) {
	err := cueschema.Validate("{ not valid cue ]][", map[string]interface{}{})
	assert.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
}
