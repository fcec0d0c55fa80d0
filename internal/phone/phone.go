// internal/phone/phone.go

// Package phone canonicalizes phone numbers so that differently written
// forms of the same number compare equal.
package phone

import (
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultRegion is used when no country calling code is configured.
const DefaultRegion = "ZW"

type Canonicalizer struct {
	region string
}

// NewCanonicalizer builds a canonicalizer for a country calling code such as "263".
func NewCanonicalizer(countryCode string) *Canonicalizer {
	region := DefaultRegion
	if cc, err := strconv.Atoi(strings.TrimPrefix(countryCode, "+")); err == nil {
		if r := libphonenumber.GetRegionCodeForCountryCode(cc); r != "" && r != "ZZ" {
			region = r
		}
	}
	return &Canonicalizer{region: region}
}

func (c *Canonicalizer) Region() string {
	return c.region
}

// Canonical returns the E.164 form of raw, or its bare digits when it does
// not parse. Empty input gives "".
func (c *Canonicalizer) Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, c.region)
	if err != nil {
		return Digits(raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

// Valid reports whether raw is a dialable number for the region.
func (c *Canonicalizer) Valid(raw string) bool {
	num, err := libphonenumber.Parse(strings.TrimSpace(raw), c.region)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(num)
}

// Same reports whether a and b are both present and name the same number.
func (c *Canonicalizer) Same(a, b string) bool {
	ca, cb := c.Canonical(a), c.Canonical(b)
	return ca != "" && ca == cb
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
