// internal/phone/phone_test.go
package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	c := NewCanonicalizer("263")
	assert.Equal(t, "ZW", c.Region())

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"local", "0772123456", "+263772123456"},
		{"international", "+263 772 123 456", "+263772123456"},
		{"dashes", "077-212-3456", "+263772123456"},
		{"empty", "   ", ""},
		{"garbage falls back to digits", "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Canonical(tt.raw))
		})
	}
}

func TestSame(t *testing.T) {
	c := NewCanonicalizer("263")

	assert.True(t, c.Same("0772123456", "+263772123456"))
	assert.False(t, c.Same("0772123456", "0772123457"))
	assert.False(t, c.Same("", ""))
}

func TestValid(t *testing.T) {
	c := NewCanonicalizer("263")

	assert.True(t, c.Valid("0772123456"))
	assert.False(t, c.Valid("12"))
}

func TestNewCanonicalizer_Fallback(t *testing.T) {
	assert.Equal(t, DefaultRegion, NewCanonicalizer("").Region())
	assert.Equal(t, DefaultRegion, NewCanonicalizer("not-a-code").Region())
	assert.Equal(t, "GB", NewCanonicalizer("+44").Region())
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "263772123456", Digits("+263 (772) 123-456"))
	assert.Equal(t, "", Digits("abc"))
}
