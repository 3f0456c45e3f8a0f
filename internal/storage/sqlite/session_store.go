package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/google/uuid"
)

// Session is one extraction run over an input.
type Session struct {
	ID         string
	Input      string
	State      string
	Total      uint32
	StartedAt  time.Time
	FinishedAt *time.Time
}

// SessionStore persists decode sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session for input. If s.ID is empty a UUID is generated.
func (s *SessionStore) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO decode_sessions (session_id, input, state, total, started_ns)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.Input, sess.State, int64(sess.Total), sess.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateState records the state and learned total of a session.
// A terminal state also stamps the finish time.
func (s *SessionStore) UpdateState(id, state string, total uint32, finished *time.Time) error {
	var finishedNs sql.NullInt64
	if finished != nil {
		finishedNs = sql.NullInt64{Int64: finished.UnixNano(), Valid: true}
	}
	res, err := s.db.Exec(`
		UPDATE decode_sessions SET state = ?, total = ?, finished_ns = ?
		WHERE session_id = ?
	`, state, int64(total), finishedNs, id)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Get returns the session with the given ID.
func (s *SessionStore) Get(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, input, state, total, started_ns, finished_ns
		FROM decode_sessions WHERE session_id = ?
	`, id)
	return scanSession(row)
}

// LatestUnfinished returns the most recent session for input that never
// reached a terminal state, or nil when there is none.
func (s *SessionStore) LatestUnfinished(input string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, input, state, total, started_ns, finished_ns
		FROM decode_sessions
		WHERE input = ? AND finished_ns IS NULL
		ORDER BY started_ns DESC
		LIMIT 1
	`, input)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		sess       Session
		total      int64
		startedNs  int64
		finishedNs sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Input, &sess.State, &total, &startedNs, &finishedNs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	t, err := safecast.Conv[uint32](total)
	if err != nil {
		return nil, fmt.Errorf("session %s total: %w", sess.ID, err)
	}
	sess.Total = t
	sess.StartedAt = time.Unix(0, startedNs)
	if finishedNs.Valid {
		ft := time.Unix(0, finishedNs.Int64)
		sess.FinishedAt = &ft
	}
	return &sess, nil
}
