// Package reassembly implements the server-side reassembly session entity
// and session table described in spec §3 and §4.5: a typed record whose
// invariants (fragment range, sender pinning, total_chunks stability) are
// enforced at insertion rather than left to the convention of a bare
// dictionary-of-dictionaries buffer.
package reassembly

import (
	"errors"
	"time"
)

// Status is the reassembly session's lifecycle stage.
type Status int

const (
	Collecting Status = iota
	Broadcasting
	Terminal
)

func (s Status) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Broadcasting:
		return "broadcasting"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

var (
	// ErrSenderMismatch means a message claiming an existing session id
	// arrived from a node other than the one pinned at creation.
	ErrSenderMismatch = errors.New("reassembly: sender does not match pinned sender")
	// ErrTotalMismatch means total_chunks disagreed with the value fixed
	// on the session's first fragment.
	ErrTotalMismatch = errors.New("reassembly: total_chunks mismatch")
	// ErrChunkOutOfRange means chunk_num fell outside [1, total_chunks].
	ErrChunkOutOfRange = errors.New("reassembly: chunk number out of range")
	// ErrDuplicateMismatch means a chunk number was already stored with a
	// different payload.
	ErrDuplicateMismatch = errors.New("reassembly: duplicate chunk with different payload")
	// ErrNotCollecting means a fragment arrived for a session that has
	// already left the Collecting state.
	ErrNotCollecting = errors.New("reassembly: session is not collecting")
)

// Session is the server-side reassembly record for one session id: the
// fields spec §3 calls out plus the map of fragments received so far.
// Session is not safe for concurrent use by multiple goroutines; the
// Engine serializes access per session id.
type Session struct {
	SessionID    string
	TotalChunks  int
	Sender       string
	FirstSeen    time.Time
	LastActivity time.Time
	Status       Status

	fragments map[int]string
}

// NewSession creates a Collecting session pinned to sender, fixing
// totalChunks for the lifetime of the session.
func NewSession(sessionID, sender string, totalChunks int, now time.Time) *Session {
	return &Session{
		SessionID:    sessionID,
		TotalChunks:  totalChunks,
		Sender:       sender,
		FirstSeen:    now,
		LastActivity: now,
		Status:       Collecting,
		fragments:    make(map[int]string, totalChunks),
	}
}

// Store validates and records one fragment. It returns an error and
// leaves the session unmodified (other than LastActivity on success) if
// the fragment violates §4.5's invariants; callers are expected to react
// to each error kind exactly as step 3-5 of §4.5 prescribes (ignore,
// evict+NACK, or no-op).
func (s *Session) Store(sender string, total, n int, payload string, now time.Time) error {
	if s.Status != Collecting {
		return ErrNotCollecting
	}
	if sender != s.Sender {
		return ErrSenderMismatch
	}
	if total != s.TotalChunks {
		return ErrTotalMismatch
	}
	if n < 1 || n > s.TotalChunks {
		return ErrChunkOutOfRange
	}
	if existing, ok := s.fragments[n]; ok {
		if existing != payload {
			return ErrDuplicateMismatch
		}
		s.LastActivity = now
		return nil // identical duplicate: refresh activity only
	}
	s.fragments[n] = payload
	s.LastActivity = now
	return nil
}

// NextMissing returns the smallest chunk number in [1, TotalChunks] not
// yet stored, or TotalChunks+1 if the session is complete.
func (s *Session) NextMissing() int {
	for n := 1; n <= s.TotalChunks; n++ {
		if _, ok := s.fragments[n]; !ok {
			return n
		}
	}
	return s.TotalChunks + 1
}

// Complete reports whether every chunk in [1, TotalChunks] is present.
func (s *Session) Complete() bool {
	return s.NextMissing() > s.TotalChunks
}

// Concat returns the fragments joined in ascending chunk order. Callers
// must only call this once Complete reports true.
func (s *Session) Concat() string {
	out := make([]byte, 0, len(s.fragments)*len(s.fragments[1]))
	for n := 1; n <= s.TotalChunks; n++ {
		out = append(out, s.fragments[n]...)
	}
	return string(out)
}
