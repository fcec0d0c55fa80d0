// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["session_id"],
	"properties": {
		"session_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$", "maxLength": 10},
		"amount": {"type": "number", "minimum": 0, "maximum": 100}
	}
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name       string
		doc        map[string]interface{}
		valid      bool
		errorField string
	}{
		{name: "valid", doc: map[string]interface{}{"session_id": "web_1", "amount": 50}, valid: true},
		{name: "missing required", doc: map[string]interface{}{}, errorField: "(root)"},
		{name: "bad pattern", doc: map[string]interface{}{"session_id": "a b"}, errorField: "session_id"},
		{name: "too long", doc: map[string]interface{}{"session_id": "abcdefghijk"}, errorField: "session_id"},
		{name: "amount out of range", doc: map[string]interface{}{"session_id": "x", "amount": 101}, errorField: "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Contains(t, res.FieldMessages(), tt.errorField)
			}
		})
	}
}

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompile(testSchema)

	res, err := s.ValidateBytes([]byte(`{"session_id": "ok"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = s.ValidateBytes([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`nope`) })
}
