// internal/stateserver/repository.go
package stateserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"

	"github.com/google/uuid"
)

// State is one stored application state row.
type State struct {
	ID             string                 `json:"id"`
	SessionID      string                 `json:"session_id"`
	Channel        string                 `json:"channel"`
	UserIdentifier string                 `json:"user_identifier"`
	CurrentStep    string                 `json:"current_step"`
	FormData       map[string]interface{} `json:"form_data"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ReferenceCode  string                 `json:"reference_code,omitempty"`
	ExpiresAt      time.Time              `json:"expires_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Repository persists application states.
type Repository interface {
	Upsert(ctx context.Context, st *State) (*State, error)
	Latest(ctx context.Context, user, channel string, now time.Time) (*State, error)
	ByReferenceCode(ctx context.Context, code string, now time.Time) (*State, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresRepository stores states in the application_states table and
// every save in state_transitions.
type PostgresRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewPostgresRepository(db *sql.DB, log logger.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "state-repository"}),
	}
}

// previous is read from the statement snapshot, so it is the step before
// this save. An empty reference code keeps the stored one.
const upsertStateSQL = `
	WITH previous AS (
		SELECT current_step FROM application_states WHERE session_id = $2
	)
	INSERT INTO application_states (
		id, session_id, channel, user_identifier, current_step,
		form_data, metadata, reference_code, expires_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	ON CONFLICT (session_id) DO UPDATE SET
		channel = EXCLUDED.channel,
		user_identifier = EXCLUDED.user_identifier,
		current_step = EXCLUDED.current_step,
		form_data = EXCLUDED.form_data,
		metadata = EXCLUDED.metadata,
		reference_code = COALESCE(EXCLUDED.reference_code, application_states.reference_code),
		expires_at = EXCLUDED.expires_at,
		updated_at = EXCLUDED.updated_at
	RETURNING id, reference_code, (SELECT current_step FROM previous)`

const insertTransitionSQL = `
	INSERT INTO state_transitions (state_id, from_step, to_step, channel, transition_data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Upsert inserts or replaces the state for st.SessionID. The returned
// state carries the row id, which is kept across updates, and the stored
// reference code.
func (r *PostgresRepository) Upsert(ctx context.Context, st *State) (*State, error) {
	formJSON, err := json.Marshal(nonNil(st.FormData))
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	metaJSON, err := json.Marshal(nonNil(st.Metadata))
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	var refCode, fromStep sql.NullString
	out := *st
	err = r.db.QueryRowContext(ctx, upsertStateSQL,
		uuid.New().String(),
		st.SessionID,
		st.Channel,
		st.UserIdentifier,
		st.CurrentStep,
		formJSON,
		metaJSON,
		sql.NullString{String: st.ReferenceCode, Valid: st.ReferenceCode != ""},
		st.ExpiresAt,
		st.UpdatedAt,
	).Scan(&out.ID, &refCode, &fromStep)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	out.ReferenceCode = refCode.String

	// Transitions are best effort.
	_, err = r.db.ExecContext(ctx, insertTransitionSQL,
		out.ID,
		fromStep,
		st.CurrentStep,
		st.Channel,
		formJSON,
		st.UpdatedAt,
	)
	if err != nil {
		r.log.Warn("state transition insert failed", map[string]interface{}{
			"error":     err,
			"sessionId": st.SessionID,
			"toStep":    st.CurrentStep,
		})
	}
	return &out, nil
}

const selectStateSQL = `
	SELECT id, session_id, channel, user_identifier, current_step,
		form_data, metadata, reference_code, expires_at, updated_at
	FROM application_states`

const latestStateSQL = selectStateSQL + `
	WHERE user_identifier = $1
		AND expires_at > $2
		AND ($3 = '' OR channel = $3)
	ORDER BY updated_at DESC
	LIMIT 1`

const stateByReferenceSQL = selectStateSQL + `
	WHERE reference_code = $1
		AND expires_at > $2
	ORDER BY updated_at DESC
	LIMIT 1`

// Latest returns the most recently updated unexpired state for user, or
// nil when there is none. An empty channel matches every channel.
func (r *PostgresRepository) Latest(ctx context.Context, user, channel string, now time.Time) (*State, error) {
	return r.queryState(ctx, "retrieve_state", latestStateSQL, user, now, channel)
}

// ByReferenceCode returns the newest unexpired state saved under code, or
// nil when there is none.
func (r *PostgresRepository) ByReferenceCode(ctx context.Context, code string, now time.Time) (*State, error) {
	return r.queryState(ctx, "resume_state", stateByReferenceSQL, code, now)
}

func (r *PostgresRepository) queryState(ctx context.Context, queryType, query string, args ...interface{}) (*State, error) {
	var (
		st       State
		formJSON []byte
		metaJSON []byte
		refCode  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&st.ID, &st.SessionID, &st.Channel, &st.UserIdentifier, &st.CurrentStep,
		&formJSON, &metaJSON, &refCode, &st.ExpiresAt, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, queryError(ctx, queryType, err)
	}
	st.ReferenceCode = refCode.String

	if err := json.Unmarshal(formJSON, &st.FormData); err != nil {
		return nil, errors.NewQueryExecutionFailedError(queryType, err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &st.Metadata); err != nil {
			return nil, errors.NewQueryExecutionFailedError(queryType, err)
		}
	}
	return &st, nil
}

// DeleteExpired removes every state that expired before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM application_states WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, queryError(ctx, "purge_states", err)
	}
	return res.RowsAffected()
}

func queryError(ctx context.Context, queryType string, err error) *errors.StandardError {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewQueryTimeoutError(queryType)
	}
	return errors.NewQueryExecutionFailedError(queryType, err)
}

func nonNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
