// internal/statesync/sanitize.go
package statesync

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"application-wizard/internal/models"
	"application-wizard/internal/phone"
)

const (
	maxSessionIDLen = 255
	maxUserIDLen    = 255
	maxNameLen      = 100
	maxIDNumberLen  = 50
	maxAmount       = 1_000_000
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	notSessionChar = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	notUserChar    = regexp.MustCompile(`[^a-zA-Z0-9@._+-]`)
	notNameChar    = regexp.MustCompile(`[^a-zA-Z\s'-]`)
	notIDChar      = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	notPhoneChar   = regexp.MustCompile(`[^0-9\s\-\(\)\+]`)
	phoneShape     = regexp.MustCompile(`^(\+263|0)?[0-9\s\-\(\)]{7,15}$`)
)

// Keys whose string values get field-specific cleaning, at any depth.
var (
	nameKeys = map[string]struct{}{
		"firstName": {}, "lastName": {}, "surname": {}, "fullName": {}, "name": {},
	}
	idKeys = map[string]struct{}{
		"nationalIdNumber": {}, "idNumber": {},
	}
	phoneKeys = map[string]struct{}{
		"mobile": {}, "phone": {}, "phoneNumber": {}, "cellNumber": {}, "whatsApp": {},
	}
)

const amountKey = "amount"

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// SanitizeSessionID keeps [A-Za-z0-9_-] up to 255 chars. An id that is
// empty after cleaning is replaced by a fresh one.
func SanitizeSessionID(id string, now time.Time) string {
	cleaned := truncate(notSessionChar.ReplaceAllString(id, ""), maxSessionIDLen)
	if cleaned == "" {
		return models.NewSessionID("web", now)
	}
	return cleaned
}

// SanitizeStep coerces step into the allow-list.
func SanitizeStep(step string) models.StepName {
	return models.NormalizeStep(step)
}

// SanitizeUserIdentifier keeps the characters an e-mail or handle may use.
func SanitizeUserIdentifier(id string) string {
	return truncate(notUserChar.ReplaceAllString(id, ""), maxUserIDLen)
}

// SanitizeText strips control characters and surrounding whitespace.
func SanitizeText(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

func SanitizeName(s string) string {
	return truncate(notNameChar.ReplaceAllString(s, ""), maxNameLen)
}

func SanitizeIDNumber(s string) string {
	return truncate(notIDChar.ReplaceAllString(s, ""), maxIDNumberLen)
}

// SanitizePhone keeps phone punctuation. A value that does not look like a
// Zimbabwean number is reduced to digits and given a best-effort prefix.
func SanitizePhone(s string) string {
	s = strings.TrimSpace(notPhoneChar.ReplaceAllString(s, ""))
	if s == "" || phoneShape.MatchString(s) {
		return s
	}
	digits := phone.Digits(s)
	switch {
	case strings.HasPrefix(digits, "263"):
		return "+" + digits
	case len(digits) >= 9:
		return "0" + digits
	default:
		return digits
	}
}

// SanitizeAmount returns the amount as a float within 0..1,000,000, or nil.
func SanitizeAmount(v interface{}) interface{} {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || f < 0 || f > maxAmount {
		return nil
	}
	return f
}

// SanitizeFormData returns a cleaned deep copy of data. The input is not modified.
func SanitizeFormData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = sanitizeField(k, v)
	}
	return out
}

func sanitizeField(key string, v interface{}) interface{} {
	if key == amountKey {
		return SanitizeAmount(v)
	}
	switch val := v.(type) {
	case string:
		return sanitizeString(key, val)
	case map[string]interface{}:
		return SanitizeFormData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			// list elements inherit the list's key, so phone lists stay phones
			out[i] = sanitizeField(key, item)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(key, s string) string {
	s = SanitizeText(s)
	if _, ok := nameKeys[key]; ok {
		return SanitizeName(s)
	}
	if _, ok := idKeys[key]; ok {
		return SanitizeIDNumber(s)
	}
	if _, ok := phoneKeys[key]; ok {
		return SanitizePhone(s)
	}
	return s
}
