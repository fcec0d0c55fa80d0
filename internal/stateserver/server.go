// internal/stateserver/server.go

// Package stateserver serves the remote state API the synchronizer pushes
// draft snapshots to.
package stateserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/common/observability"
	"application-wizard/internal/common/validation"
	"application-wizard/internal/identifier"
	"application-wizard/internal/statesync"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"

	lockKeyPrefix = "application_state_lock"
	isoMillis     = "2006-01-02T15:04:05.000Z07:00"
)

type saveRequest struct {
	SessionID      string                 `json:"session_id"`
	Channel        string                 `json:"channel"`
	UserIdentifier string                 `json:"user_identifier"`
	CurrentStep    string                 `json:"current_step"`
	FormData       map[string]interface{} `json:"form_data"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// Server is the gin-backed state API.
type Server struct {
	cfg     config.StateAPIConfig
	repo    Repository
	cache   *Cache
	locker  *redislock.Client
	limiter *ClientLimiter
	obs     *observability.Observability
	now     func() time.Time
	log     logger.Logger
	engine  *gin.Engine
}

// NewServer wires the routes. cache and locker may be nil; the server then
// reads straight from the repository and saves without locking.
func NewServer(
	cfg config.StateAPIConfig,
	repo Repository,
	cache *Cache,
	locker *redislock.Client,
	obs *observability.Observability,
	clock func() time.Time,
	log logger.Logger,
) *Server {
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		cfg:     cfg,
		repo:    repo,
		cache:   cache,
		locker:  locker,
		limiter: NewClientLimiter(cfg.RateLimitRPS, cfg.RateBurst, 0),
		obs:     obs,
		now:     clock,
		log:     log.WithFields(map[string]interface{}{"component": "state-api"}),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router for an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET(HealthPath, s.health)
	r.GET(MetricsPath, gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/states", s.rateLimit())
	api.POST("/save", s.save)
	api.POST("/retrieve", s.retrieve)
	api.POST("/resume", s.resume)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      s.engine,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("State API listening", map[string]interface{}{"address": cfg.Address})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.ShutdownTimeout))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// PurgeExpired deletes expired states. The service runs it periodically.
func (s *Server) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Error("Failed to purge expired states", nil)
		return 0, err
	}
	if n > 0 {
		s.log.Info("Purged expired states", map[string]interface{}{"count": n})
	}
	return n, nil
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := s.obs.StartSpan(c.Request.Context(), "state_api "+route,
			attribute.String("http.method", c.Request.Method),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		metrics.StateRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.obs.RecordStateRequest(ctx, route, status)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP(), s.now()) {
			s.log.Warn("Rate limit exceeded", map[string]interface{}{"client": c.ClientIP()})
			s.fail(c, http.StatusTooManyRequests, errors.NewRateLimitedError(c.ClientIP()))
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) save(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.badRequest(c)
		return
	}
	if !s.validate(c, saveRequestSchema, raw) {
		return
	}

	var req saveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.badRequest(c)
		return
	}

	ctx := c.Request.Context()
	lock, ok := s.obtainLock(ctx, req.SessionID)
	if !ok {
		s.fail(c, http.StatusConflict, errors.NewStateLockedError(req.SessionID))
		return
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
				s.log.WithError(err).Warn("Failed to release state lock", map[string]interface{}{"sessionId": req.SessionID})
			}
		}()
	}

	now := s.now().UTC()
	st := &State{
		SessionID:      req.SessionID,
		Channel:        req.Channel,
		UserIdentifier: statesync.SanitizeUserIdentifier(req.UserIdentifier),
		CurrentStep:    string(statesync.SanitizeStep(req.CurrentStep)),
		FormData:       statesync.SanitizeFormData(req.FormData),
		Metadata:       req.Metadata,
		ReferenceCode:  referenceCodeOf(req.FormData),
		ExpiresAt:      now.Add(s.cfg.ChannelTTLDuration(req.Channel)),
		UpdatedAt:      now,
	}

	saved, err := s.repo.Upsert(ctx, st)
	if err != nil {
		s.log.WithError(err).Error("Failed to save state", map[string]interface{}{
			"sessionId": req.SessionID,
			"channel":   req.Channel,
		})
		s.failStorage(c, err, "Failed to save state")
		return
	}

	if err := s.cache.Invalidate(ctx, saved.UserIdentifier, saved.Channel); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate state cache", map[string]interface{}{"user": saved.UserIdentifier})
	}

	s.log.Debug("State saved", map[string]interface{}{
		"sessionId": saved.SessionID,
		"step":      saved.CurrentStep,
		"channel":   saved.Channel,
	})
	c.JSON(http.StatusOK, statesync.SaveResponse{
		Success:   true,
		StateID:   saved.ID,
		ExpiresAt: saved.ExpiresAt.UTC().Format(isoMillis),
	})
}

// obtainLock serializes saves per session. A Redis failure degrades to an
// unlocked save; only a held lock refuses the request.
func (s *Server) obtainLock(ctx context.Context, sessionID string) (*redislock.Lock, bool) {
	if s.locker == nil {
		return nil, true
	}
	lock, err := s.locker.Obtain(ctx, lockKeyPrefix+":"+sessionID, config.GetDuration(s.cfg.LockTTL), &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 3),
	})
	if err == redislock.ErrNotObtained {
		s.log.Warn("State lock held by another save", map[string]interface{}{"sessionId": sessionID})
		return nil, false
	}
	if err != nil {
		s.log.WithError(err).Warn("Saving without state lock", map[string]interface{}{"sessionId": sessionID})
		return nil, true
	}
	return lock, true
}

func (s *Server) retrieve(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.badRequest(c)
		return
	}
	if !s.validate(c, retrieveRequestSchema, raw) {
		return
	}

	var req statesync.RetrieveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.badRequest(c)
		return
	}

	ctx := c.Request.Context()
	now := s.now().UTC()

	st, hit, err := s.cache.Get(ctx, req.User, req.Channel)
	if err != nil {
		s.log.WithError(err).Warn("State cache read failed", map[string]interface{}{"user": req.User})
	}
	if hit && !st.ExpiresAt.After(now) {
		st, hit = nil, false
	}
	if !hit {
		st, err = s.repo.Latest(ctx, req.User, req.Channel, now)
		if err != nil {
			s.log.WithError(err).Error("Failed to retrieve state", map[string]interface{}{"user": req.User})
			s.failStorage(c, err, "Failed to retrieve state")
			return
		}
		if st != nil {
			if err := s.cache.Set(ctx, req.User, req.Channel, st); err != nil {
				s.log.WithError(err).Warn("State cache write failed", map[string]interface{}{"user": req.User})
			}
		}
	}

	if st == nil {
		s.fail(c, http.StatusNotFound, errors.NewStateNotFoundError(req.User))
		return
	}
	c.JSON(http.StatusOK, remoteState(st, now))
}

// resume looks a state up by the reference code derived from the
// applicant's national ID, so a draft can be picked up on another channel.
func (s *Server) resume(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.badRequest(c)
		return
	}
	if !s.validate(c, resumeRequestSchema, raw) {
		return
	}

	var req statesync.ResumeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.badRequest(c)
		return
	}
	code := identifier.ReferenceCode(req.ReferenceCode)
	if code == "" {
		s.fail(c, http.StatusUnprocessableEntity, errors.NewInvalidStateRequestError("reference_code has no letters or digits"))
		return
	}

	now := s.now().UTC()
	st, err := s.repo.ByReferenceCode(c.Request.Context(), code, now)
	if err != nil {
		s.log.WithError(err).Error("Failed to resume state", map[string]interface{}{"referenceCode": code})
		s.failStorage(c, err, "Failed to resume state")
		return
	}
	if st == nil {
		s.fail(c, http.StatusNotFound, errors.NewStateNotFoundError(code))
		return
	}
	c.JSON(http.StatusOK, remoteState(st, now))
}

func remoteState(st *State, now time.Time) statesync.RemoteState {
	return statesync.RemoteState{
		Success:       true,
		SessionID:     st.SessionID,
		CurrentStep:   st.CurrentStep,
		FormData:      st.FormData,
		ReferenceCode: st.ReferenceCode,
		CanResume:     true,
		ExpiresIn:     int64(st.ExpiresAt.Sub(now).Seconds()),
	}
}

// referenceCodeOf picks the first national ID the form carries.
func referenceCodeOf(form map[string]interface{}) string {
	candidates := []interface{}{form["referenceCode"]}
	for _, section := range []string{"personal", "formResponses"} {
		if m, ok := form[section].(map[string]interface{}); ok {
			candidates = append(candidates, m["nationalIdNumber"])
		}
	}
	for _, v := range candidates {
		if str, ok := v.(string); ok {
			if code := identifier.ReferenceCode(str); code != "" {
				return code
			}
		}
	}
	return ""
}

// fail aborts with the error's code and message. retryable tells the
// caller whether sending the same request again can succeed.
func (s *Server) fail(c *gin.Context, status int, stdErr *errors.StandardError) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":   false,
		"code":      stdErr.Code,
		"message":   stdErr.Message,
		"retryable": errors.IsRetryableErrorCode(stdErr.Code),
	})
}

func (s *Server) badRequest(c *gin.Context) {
	s.fail(c, http.StatusBadRequest, errors.NewInvalidStateRequestError("malformed request body"))
}

// failStorage reports a repository error under message. Query timeouts
// map to 504.
func (s *Server) failStorage(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	if errors.HasCode(err, errors.ErrCodeQueryTimeout) {
		status = http.StatusGatewayTimeout
	}
	code := errors.ErrCodeQueryExecutionFailed
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = stdErr.Code
	}
	s.fail(c, status, &errors.StandardError{Code: code, Message: message})
}

// validate writes a 422 with per-field messages when raw fails schema.
func (s *Server) validate(c *gin.Context, schema *validation.Schema, raw []byte) bool {
	res, err := schema.ValidateBytes(raw)
	if err != nil {
		s.badRequest(c)
		return false
	}
	if !res.Valid {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"code":    errors.ErrCodeInvalidStateRequest,
			"message": "The given data was invalid.",
			"errors":  res.FieldMessages(),
		})
		return false
	}
	return true
}
