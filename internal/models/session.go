// internal/models/session.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionSnapshot is the serialized recovery copy of an in-progress draft.
type SessionSnapshot struct {
	SessionID   string                 `json:"sessionId"`
	CurrentStep StepName               `json:"currentStep"`
	FormData    map[string]interface{} `json:"formData"`
	Timestamp   time.Time              `json:"timestamp"`
	ExpiresAt   time.Time              `json:"expiresAt"`
}

// IsExpired reports whether the snapshot is past its expiry at now.
func (s *SessionSnapshot) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// NewSessionID returns an id of the form <scope>_<unix ms>_<9 random chars>.
func NewSessionID(scope string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", scope, now.UnixMilli(), random)
}
