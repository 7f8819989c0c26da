// Package cueschema validates a plugin's cfg subtable against an optional
// CUE schema the plugin supplies, using cuelang.org/go directly. This is
// the CUE-based validation layer named in SPEC_FULL.md's DOMAIN STACK,
// grounded on catalyst-forge-libs/cue's role as the schema engine behind
// config.Validate (see catalyst-forge-libs/config/loader.go, which drives
// a cue.Loader the same way this package drives cuecontext.Context).
package cueschema

import (
	"encoding/json"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/semanteecore/forge-release/internal/errors"
)

// Validate checks subtable against a CUE schema expression. schema is a
// CUE definition such as "{ token: string, timeout?: int }"; an empty
// schema skips validation entirely — most built-in plugins have none.
func Validate(schema string, subtable map[string]interface{}) error {
	if schema == "" {
		return nil
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(schema)
	if err := schemaValue.Err(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "plugin declared an invalid CUE schema")
	}

	data, err := json.Marshal(subtable)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "plugin cfg subtable is not JSON-representable")
	}

	instanceValue := ctx.CompileBytes(data)
	if err := instanceValue.Err(); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "plugin cfg subtable could not be compiled")
	}

	unified := schemaValue.Unify(instanceValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errors.Wrap(err, errors.CodeBadConfig, "plugin cfg subtable does not satisfy its CUE schema")
	}

	return nil
}
