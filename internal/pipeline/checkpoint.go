package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/ghostframe/internal/fragment"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/storage/sqlite"
)

// Checkpoint persists session progress. Record is called concurrently from
// scan workers, once per newly observed fragment.
type Checkpoint interface {
	// Begin opens a session for input and returns fragments already
	// recovered by an earlier, unfinished session when resuming.
	Begin(input string) (sessionID string, seed []fragment.Fragment, err error)
	Record(f fragment.Fragment, frame int) error
	Finish(state State, total uint32) error
}

// SQLiteCheckpoint stores sessions in the checkpoint database.
type SQLiteCheckpoint struct {
	sessions  *sqlite.SessionStore
	fragments *sqlite.FragmentStore
	resume    bool
	now       func() time.Time

	sessionID string
}

// NewSQLiteCheckpoint wraps an opened checkpoint database. With resume set,
// Begin continues the latest unfinished session for the same input.
func NewSQLiteCheckpoint(db *sql.DB, resume bool) *SQLiteCheckpoint {
	return &SQLiteCheckpoint{
		sessions:  sqlite.NewSessionStore(db),
		fragments: sqlite.NewFragmentStore(db),
		resume:    resume,
		now:       time.Now,
	}
}

func (c *SQLiteCheckpoint) Begin(input string) (string, []fragment.Fragment, error) {
	if c.resume {
		prev, err := c.sessions.LatestUnfinished(input)
		if err != nil {
			return "", nil, fmt.Errorf("find resumable session: %w", err)
		}
		if prev != nil {
			seed, err := c.fragments.ListBySession(prev.ID)
			if err != nil {
				return "", nil, fmt.Errorf("load session %s: %w", prev.ID, err)
			}
			c.sessionID = prev.ID
			monitoring.Logf("checkpoint: resuming session %s with %d fragments", prev.ID, len(seed))
			return prev.ID, seed, nil
		}
	}

	sess := &sqlite.Session{Input: input, State: StateScanning.String(), StartedAt: c.now()}
	if err := c.sessions.Create(sess); err != nil {
		return "", nil, err
	}
	c.sessionID = sess.ID
	return sess.ID, nil, nil
}

func (c *SQLiteCheckpoint) Record(f fragment.Fragment, frame int) error {
	return c.fragments.Insert(c.sessionID, f, frame)
}

func (c *SQLiteCheckpoint) Finish(state State, total uint32) error {
	var finished *time.Time
	if state.Terminal() {
		t := c.now()
		finished = &t
	}
	return c.sessions.UpdateState(c.sessionID, state.String(), total, finished)
}
