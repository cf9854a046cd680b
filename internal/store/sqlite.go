package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite lock history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StartSession inserts a new open session and returns its ID.
func (s *Store) StartSession(sess *Session) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sessions (started_ns, device, threshold, sticky, release_after_ms)
		VALUES (?, ?, ?, ?, ?)`,
		sess.StartedNs, sess.Device, sess.Threshold, sess.Sticky, sess.ReleaseAfterMs,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// EndSession closes a session and stores its final counters.
func (s *Store) EndSession(id, endNs, events, suppressed int64) error {
	result, err := s.db.Exec(`
		UPDATE sessions SET ended_ns = ?, events = ?, suppressed = ?
		WHERE id = ?`, endNs, events, suppressed, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %d", id)
	}

	return nil
}

// GetSession retrieves a session by ID. It returns nil when none exists.
func (s *Store) GetSession(id int64) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, started_ns, ended_ns, device, threshold, sticky, release_after_ms, events, suppressed
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, started_ns, ended_ns, device, threshold, sticky, release_after_ms, events, suppressed
		FROM sessions
		ORDER BY started_ns DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// InsertLocks inserts closed lock periods in one transaction.
func (s *Store) InsertLocks(locks []Lock) error {
	if len(locks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO locks (session_id, axis, locked_ns, released_ns, events, suppressed)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range locks {
		if _, err := stmt.Exec(l.SessionID, l.Axis, l.LockedNs, l.ReleasedNs, l.Events, l.Suppressed); err != nil {
			return fmt.Errorf("insert lock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetLocks retrieves the locks of a session in time order.
func (s *Store) GetLocks(sessionID int64) ([]Lock, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, axis, locked_ns, released_ns, events, suppressed
		FROM locks
		WHERE session_id = ?
		ORDER BY locked_ns ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer rows.Close()

	var locks []Lock
	for rows.Next() {
		var l Lock
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Axis, &l.LockedNs, &l.ReleasedNs, &l.Events, &l.Suppressed); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locks: %w", err)
	}

	return locks, nil
}

// InsertReload records a configuration change and returns its ID.
func (s *Store) InsertReload(r *Reload) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO reloads (session_id, timestamp_ns, threshold, sticky, release_after_ms)
		VALUES (?, ?, ?, ?, ?)`,
		r.SessionID, r.TimestampNs, r.Threshold, r.Sticky, r.ReleaseAfterMs,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// GetReloads retrieves the reloads of a session in time order.
func (s *Store) GetReloads(sessionID int64) ([]Reload, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp_ns, threshold, sticky, release_after_ms
		FROM reloads
		WHERE session_id = ?
		ORDER BY timestamp_ns ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reloads: %w", err)
	}
	defer rows.Close()

	var reloads []Reload
	for rows.Next() {
		var r Reload
		if err := rows.Scan(&r.ID, &r.SessionID, &r.TimestampNs, &r.Threshold, &r.Sticky, &r.ReleaseAfterMs); err != nil {
			return nil, fmt.Errorf("scan reload: %w", err)
		}
		reloads = append(reloads, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reloads: %w", err)
	}

	return reloads, nil
}

// Summarize aggregates a session's locks per axis. It returns nil when the
// session does not exist.
func (s *Store) Summarize(sessionID int64) (*Summary, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT axis, COUNT(*), SUM(released_ns - locked_ns), SUM(events), SUM(suppressed)
		FROM locks
		WHERE session_id = ?
		GROUP BY axis
		ORDER BY axis`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize locks: %w", err)
	}
	defer rows.Close()

	sum := &Summary{Session: *sess}
	for rows.Next() {
		var a AxisSummary
		var heldNs int64
		if err := rows.Scan(&a.Axis, &a.Locks, &heldNs, &a.Events, &a.Suppressed); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		a.Held = durationNs(heldNs)
		sum.Axes = append(sum.Axes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reloads WHERE session_id = ?`, sessionID).Scan(&sum.Reloads); err != nil {
		return nil, fmt.Errorf("count reloads: %w", err)
	}

	return sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var sess Session
	if err := r.Scan(&sess.ID, &sess.StartedNs, &sess.EndedNs, &sess.Device, &sess.Threshold,
		&sess.Sticky, &sess.ReleaseAfterMs, &sess.Events, &sess.Suppressed); err != nil {
		return nil, err
	}
	return &sess, nil
}
