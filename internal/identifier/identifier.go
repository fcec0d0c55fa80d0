// internal/identifier/identifier.go

// Package identifier normalizes Zimbabwean national ID numbers into the
// canonical XX-XXXXXXX-Y-ZZ display form.
package identifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// District codes run from 01 to 70.
const maxDistrictNum = 70

var (
	whitespace    = regexp.MustCompile(`\s+`)
	withDashes    = regexp.MustCompile(`^(\d{2})-(\d{6,7})-([A-Z])-(\d{2})$`)
	withoutDashes = regexp.MustCompile(`^(\d{2})(\d{6,7})([A-Z])(\d{2})$`)
	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
)

// Result is the outcome of Validate.
type Result struct {
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted,omitempty"`
	Message   string `json:"message,omitempty"`
}

func clean(raw string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(strings.TrimSpace(raw), ""))
}

func parts(cleaned string) []string {
	if m := withDashes.FindStringSubmatch(cleaned); m != nil {
		return m[1:]
	}
	if m := withoutDashes.FindStringSubmatch(cleaned); m != nil {
		return m[1:]
	}
	return nil
}

// Format returns the canonical form of raw when it has the shape of a
// national ID, otherwise raw with whitespace removed and letters upper-cased.
// Format is idempotent.
func Format(raw string) string {
	cleaned := clean(raw)
	p := parts(cleaned)
	if p == nil {
		return cleaned
	}
	return fmt.Sprintf("%s-%s-%s-%s", p[0], p[1], p[2], p[3])
}

// Validate checks the shape and district code of raw.
func Validate(raw string) Result {
	cleaned := clean(raw)
	if cleaned == "" {
		return Result{Message: "ID number is required"}
	}

	p := parts(cleaned)
	if p == nil {
		return Result{Message: "Invalid ID format. Expected format: XX-XXXXXXX-Y-ZZ (e.g., 08-2047823-Q-29)"}
	}

	district, _ := strconv.Atoi(p[0])
	if district < 1 || district > maxDistrictNum {
		return Result{Message: fmt.Sprintf("Invalid district code: %s. Please verify your ID number.", p[0])}
	}

	return Result{
		Valid:     true,
		Formatted: fmt.Sprintf("%s-%s-%s-%s", p[0], p[1], p[2], p[3]),
		Message:   "Valid Zimbabwean National ID",
	}
}

// Valid reports whether raw is a well-formed national ID.
func Valid(raw string) bool {
	return Validate(raw).Valid
}

// ReferenceCode is the national ID reduced to upper-case letters and digits.
// Submitted applications are tracked by it.
func ReferenceCode(raw string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
}
