package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"github.com/banshee-data/ghostframe/internal/fragment"
)

// FragmentStore persists fragments recovered during a session.
type FragmentStore struct {
	db *sql.DB
}

// NewFragmentStore creates a new FragmentStore.
func NewFragmentStore(db *sql.DB) *FragmentStore {
	return &FragmentStore{db: db}
}

// Insert records f as found in frame. Re-inserting an index is a no-op.
func (s *FragmentStore) Insert(sessionID string, f fragment.Fragment, frame int) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO decode_fragments (session_id, idx, total, size, checksum, payload, frame)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, int64(f.Index), int64(f.Total), int64(f.Size),
		strconv.FormatUint(f.Checksum, 16), f.Payload, frame)
	if err != nil {
		return fmt.Errorf("insert fragment %d: %w", f.Index, err)
	}
	return nil
}

// ListBySession returns the session's fragments ordered by index.
func (s *FragmentStore) ListBySession(sessionID string) ([]fragment.Fragment, error) {
	rows, err := s.db.Query(`
		SELECT idx, total, size, checksum, payload
		FROM decode_fragments
		WHERE session_id = ?
		ORDER BY idx
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	defer rows.Close()

	var out []fragment.Fragment
	for rows.Next() {
		var (
			idx, total, size int64
			sum              string
			f                fragment.Fragment
		)
		if err := rows.Scan(&idx, &total, &size, &sum, &f.Payload); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		if f.Index, err = safecast.Conv[uint32](idx); err != nil {
			return nil, fmt.Errorf("fragment idx: %w", err)
		}
		if f.Total, err = safecast.Conv[uint32](total); err != nil {
			return nil, fmt.Errorf("fragment total: %w", err)
		}
		if f.Size, err = safecast.Conv[uint32](size); err != nil {
			return nil, fmt.Errorf("fragment size: %w", err)
		}
		if f.Checksum, err = strconv.ParseUint(sum, 16, 64); err != nil {
			return nil, fmt.Errorf("fragment checksum: %w", err)
		}
		if fragment.Checksum(f.Payload) != f.Checksum {
			return nil, fmt.Errorf("fragment %d: %w", f.Index, fragment.ErrChecksumMismatch)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountBySession returns how many fragments a session has recorded.
func (s *FragmentStore) CountBySession(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM decode_fragments WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fragments: %w", err)
	}
	return n, nil
}
