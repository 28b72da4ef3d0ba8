package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session represents one monitoring session.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   sql.NullTime
	Mode      string
}

// Alert represents one alert raised during a session.
type Alert struct {
	ID        int64
	SessionID string
	Kind      string
	Detail    string
	RaisedAt  time.Time
}

// ExerciseRecord represents one completed eye exercise routine.
type ExerciseRecord struct {
	ID          int64
	SessionID   string
	DurationS   float64
	CompletedAt time.Time
}

// SessionStats summarizes stored session history for display.
type SessionStats struct {
	TotalSessions      int     `json:"total_sessions"`
	TotalAlerts        int     `json:"total_alerts"`
	ExercisesCompleted int     `json:"exercises_completed"`
	TotalScreenTimeS   float64 `json:"total_screen_time_s"`
}

// SessionRepository provides CRUD operations for sessions and their
// alerts and exercises.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Begin inserts a new open session and returns it.
func (r *SessionRepository) Begin(mode string, now time.Time) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		Mode:      mode,
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, mode) VALUES (?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Mode,
	)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// End closes an open session.
func (r *SessionRepository) End(id string, now time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		now, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}

	err := r.db.QueryRow(
		`SELECT id, started_at, ended_at, mode FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Mode)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return sess, nil
}

// List retrieves all sessions, most recent first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, started_at, ended_at, mode FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Mode); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// AddAlert records an alert against a session.
func (r *SessionRepository) AddAlert(sessionID, kind, detail string, raisedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO session_alerts (session_id, kind, detail, raised_at)
		 VALUES (?, ?, ?, ?)`,
		sessionID, kind, detail, raisedAt,
	)
	return err
}

// AddExercise records a completed eye exercise against a session.
func (r *SessionRepository) AddExercise(sessionID string, durationS float64, completedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO session_exercises (session_id, duration_s, completed_at)
		 VALUES (?, ?, ?)`,
		sessionID, durationS, completedAt,
	)
	return err
}

// Alerts retrieves all alerts for a session in the order they were raised.
func (r *SessionRepository) Alerts(sessionID string) ([]*Alert, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, detail, raised_at
		 FROM session_alerts WHERE session_id = ? ORDER BY raised_at`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.Detail, &a.RaisedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Stats aggregates stored session history. Screen time is summed in Go:
// the driver binds time.Time in a text form SQLite's date functions
// cannot parse, so duration arithmetic cannot happen in SQL.
func (r *SessionRepository) Stats() (*SessionStats, error) {
	stats := &SessionStats{}

	rows, err := r.db.Query(`SELECT started_at, ended_at FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	for rows.Next() {
		var started time.Time
		var ended sql.NullTime
		if err := rows.Scan(&started, &ended); err != nil {
			return nil, err
		}

		// An open session counts up to the present.
		end := now
		if ended.Valid {
			end = ended.Time
		}
		stats.TotalSessions++
		stats.TotalScreenTimeS += end.Sub(started).Seconds()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(`SELECT COUNT(*) FROM session_alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(`SELECT COUNT(*) FROM session_exercises`).Scan(&stats.ExercisesCompleted); err != nil {
		return nil, err
	}

	return stats, nil
}
