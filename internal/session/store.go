// internal/session/store.go

// Package session keeps the local recovery copy of an in-progress draft in
// two storage tiers with a fixed lifetime.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/debounce"
	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/models"
)

const (
	defaultTTL      = 24 * time.Hour
	defaultDebounce = time.Second
	saveTimeout     = 5 * time.Second
)

// Store persists SessionSnapshots. Reads prefer the scoped tier and fall
// back to the durable one. No operation returns an error: failures are
// logged and counted, and callers carry on with in-memory state.
type Store struct {
	scoped   Tier
	durable  Tier
	keys     keySet
	ttl      time.Duration
	debounce time.Duration
	now      func() time.Time
	pending  *debounce.Debouncer
	log      logger.Logger
}

type keySet struct {
	state, sessionID, currentStep, expiry string
}

func (k keySet) all() []string {
	return []string{k.state, k.sessionID, k.currentStep, k.expiry}
}

func newKeySet(prefix string) keySet {
	return keySet{
		state:       prefix + ":state",
		sessionID:   prefix + ":session_id",
		currentStep: prefix + ":current_step",
		expiry:      prefix + ":expiry",
	}
}

// NewStore builds a store over two tiers. Either tier may be nil.
func NewStore(cfg config.SessionConfig, scoped, durable Tier, clock func() time.Time, log logger.Logger) *Store {
	if clock == nil {
		clock = time.Now
	}
	ttl := config.GetDuration(cfg.TTL)
	if ttl <= 0 {
		ttl = defaultTTL
	}
	delay := config.GetDuration(cfg.DebounceMs)
	if delay <= 0 {
		delay = defaultDebounce
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "bancozim_application"
	}

	return &Store{
		scoped:   scoped,
		durable:  durable,
		keys:     newKeySet(prefix),
		ttl:      ttl,
		debounce: delay,
		now:      clock,
		pending:  debounce.New(delay),
		log:      log.WithFields(map[string]interface{}{"component": "session_store"}),
	}
}

func (s *Store) tiers() []Tier {
	out := make([]Tier, 0, 2)
	for _, t := range []Tier{s.scoped, s.durable} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Save writes a fresh snapshot to every tier with expiry now+TTL.
func (s *Store) Save(ctx context.Context, sessionID string, step models.StepName, formData map[string]interface{}) {
	now := s.now()
	snap := models.SessionSnapshot{
		SessionID:   sessionID,
		CurrentStep: step,
		FormData:    formData,
		Timestamp:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.write(ctx, &snap)
}

func (s *Store) write(ctx context.Context, snap *models.SessionSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		// nothing was written, the previous snapshot stays intact
		metrics.SessionSaves.WithLabelValues("all", "marshal_error").Inc()
		s.log.WithError(err).Error("Failed to encode session snapshot", map[string]interface{}{
			"sessionId": snap.SessionID,
		})
		return
	}

	values := []struct{ key, value string }{
		{s.keys.state, string(data)},
		{s.keys.sessionID, snap.SessionID},
		{s.keys.currentStep, string(snap.CurrentStep)},
		{s.keys.expiry, strconv.FormatInt(snap.ExpiresAt.UnixMilli(), 10)},
	}

	for _, t := range s.tiers() {
		outcome := "ok"
		for _, kv := range values {
			if err := t.Set(ctx, kv.key, kv.value); err != nil {
				outcome = "error"
				stdErr := errors.NewSessionPersistFailedError(t.Name(), err)
				s.log.WithError(stdErr).Warn("Failed to persist session snapshot", map[string]interface{}{
					"tier":      t.Name(),
					"sessionId": snap.SessionID,
				})
				break
			}
		}
		metrics.SessionSaves.WithLabelValues(t.Name(), outcome).Inc()
	}
}

// Load returns the stored snapshot. An expired snapshot is purged from every
// tier and reported as absent.
func (s *Store) Load(ctx context.Context) (*models.SessionSnapshot, bool) {
	now := s.now()

	if exp, ok := s.readExpiry(ctx); ok && now.After(exp) {
		s.expire(ctx)
		return nil, false
	}

	for _, t := range s.tiers() {
		raw, ok, err := t.Get(ctx, s.keys.state)
		if err != nil {
			s.log.WithError(err).Warn("Failed to read session snapshot", map[string]interface{}{"tier": t.Name()})
			continue
		}
		if !ok {
			continue
		}

		var snap models.SessionSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			s.log.WithError(errors.NewSessionCorruptError(err)).Warn("Discarding unreadable session snapshot", map[string]interface{}{
				"tier": t.Name(),
			})
			continue
		}
		if snap.IsExpired(now) {
			s.expire(ctx)
			return nil, false
		}
		if snap.FormData == nil {
			snap.FormData = map[string]interface{}{}
		}
		return &snap, true
	}
	return nil, false
}

func (s *Store) readExpiry(ctx context.Context) (time.Time, bool) {
	for _, t := range s.tiers() {
		raw, ok, err := t.Get(ctx, s.keys.expiry)
		if err != nil || !ok {
			continue
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

func (s *Store) expire(ctx context.Context) {
	metrics.SessionExpired.Inc()
	s.log.Info("Session snapshot expired", nil)
	s.Clear(ctx)
}

// Clear removes every session key from every tier.
func (s *Store) Clear(ctx context.Context) {
	for _, t := range s.tiers() {
		if err := t.Delete(ctx, s.keys.all()...); err != nil {
			s.log.WithError(err).Warn("Failed to clear session keys", map[string]interface{}{"tier": t.Name()})
		}
	}
}

// Patch shallow-merges updates into the stored form data and slides the
// expiry forward. It reports false when nothing is stored.
func (s *Store) Patch(ctx context.Context, updates map[string]interface{}) bool {
	snap, ok := s.Load(ctx)
	if !ok {
		return false
	}
	for k, v := range updates {
		snap.FormData[k] = v
	}
	s.Save(ctx, snap.SessionID, snap.CurrentStep, snap.FormData)
	return true
}

// DebouncedSave schedules a Save. A later call replaces an earlier pending
// one. A non-positive delay uses the configured debounce.
func (s *Store) DebouncedSave(sessionID string, step models.StepName, formData map[string]interface{}, delay time.Duration) {
	if delay <= 0 {
		delay = s.debounce
	}
	snapshot := make(map[string]interface{}, len(formData))
	for k, v := range formData {
		snapshot[k] = v
	}
	s.pending.ScheduleAfter(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		s.Save(ctx, sessionID, step, snapshot)
	})
}

// Flush runs a pending debounced save now.
func (s *Store) Flush() bool {
	return s.pending.Flush()
}

// Cancel drops a pending debounced save.
func (s *Store) Cancel() bool {
	return s.pending.Cancel()
}

// TTL is the snapshot lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
