package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Sessions table - one row per monitoring session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			mode TEXT NOT NULL
		)`,

		// Session alerts table - reminders, posture and blink alerts,
		// and monitoring errors raised during a session
		`CREATE TABLE IF NOT EXISTS session_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			raised_at DATETIME NOT NULL
		)`,

		// Session exercises table - completed eye exercise routines
		`CREATE TABLE IF NOT EXISTS session_exercises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			duration_s REAL NOT NULL,
			completed_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_session_alerts_session_id ON session_alerts(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_exercises_session_id ON session_exercises(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
