package reassembly

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSessionExists is returned by Add when the session id is already
	// present in the active table.
	ErrSessionExists = errors.New("reassembly: session already exists")
	// ErrSessionNotFound names a lookup of an unknown id. No Table method
	// returns it: Get reports absence through its boolean result and Remove
	// is a no-op for unknown ids.
	ErrSessionNotFound = errors.New("reassembly: session not found")
)

// DefaultReplayCapacity is the "recently completed" ring size named in
// spec §5 ("bounded, e.g. 64 entries, LRU by completion time").
const DefaultReplayCapacity = 64

// Table is the server session table from spec §3: a mapping from session
// id to reassembly session, plus the bounded replay ring from §4.5/§9 that
// lets a terminal message be re-emitted byte-for-byte to a chunk that
// arrives after the session has already gone Terminal. Table guards both
// structures with a single lock; per-session-id exclusivity for the
// actual reassembly work is the caller's responsibility (see Engine,
// which takes this lock only for the table lookup itself).
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session

	replayCap   int
	replayOrder *list.List // front = most recently completed
	replay      map[string]*list.Element
	replayMsg   map[string]string
}

// NewTable creates an empty Table with the default replay capacity.
func NewTable() *Table {
	return NewTableWithReplayCapacity(DefaultReplayCapacity)
}

// NewTableWithReplayCapacity creates an empty Table whose replay ring
// holds at most capacity entries.
func NewTableWithReplayCapacity(capacity int) *Table {
	return &Table{
		sessions:    make(map[string]*Session),
		replayCap:   capacity,
		replayOrder: list.New(),
		replay:      make(map[string]*list.Element),
		replayMsg:   make(map[string]string),
	}
}

// Add inserts a newly created session. It fails if the id is already
// active (the caller should treat this as a probabilistic collision per
// spec §4.2, not a protocol error).
func (t *Table) Add(s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[s.SessionID]; ok {
		return ErrSessionExists
	}
	t.sessions[s.SessionID] = s
	return nil
}

// Get returns the active session for id, if any.
func (t *Table) Get(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Remove deletes id from the active table. It is a no-op if absent.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Len returns the number of sessions currently in the active table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// StaleCollecting returns the active sessions in Collecting state whose
// last activity is older than timeout, for the janitor to evict (spec
// §4.6). It does not remove them; the caller evicts each via Remove and
// emits the timeout NACK.
func (t *Table) StaleCollecting(now time.Time, timeout time.Duration) []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	var stale []*Session
	for _, s := range t.sessions {
		if s.Status == Collecting && now.Sub(s.LastActivity) > timeout {
			stale = append(stale, s)
		}
	}
	return stale
}

// RememberTerminal records the terminal message text for a session that
// just went Terminal, evicting the oldest entry if the ring is full.
func (t *Table) RememberTerminal(id, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.replay[id]; ok {
		t.replayOrder.MoveToFront(el)
		t.replayMsg[id] = message
		return
	}

	el := t.replayOrder.PushFront(id)
	t.replay[id] = el
	t.replayMsg[id] = message

	if t.replayCap > 0 {
		for t.replayOrder.Len() > t.replayCap {
			back := t.replayOrder.Back()
			if back == nil {
				break
			}
			oldID := back.Value.(string)
			t.replayOrder.Remove(back)
			delete(t.replay, oldID)
			delete(t.replayMsg, oldID)
		}
	}
}

// ReplayTerminal returns the remembered terminal message for a recently
// completed session id, if it is still within the ring.
func (t *Table) ReplayTerminal(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.replayMsg[id]
	return msg, ok
}
