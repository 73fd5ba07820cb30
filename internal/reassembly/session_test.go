package reassembly

import (
	"testing"
	"time"
)

func TestSessionStoreAndNextMissing(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 3, now)

	if got := s.NextMissing(); got != 1 {
		t.Fatalf("NextMissing before any store = %d, want 1", got)
	}

	if err := s.Store("!node1", 3, 2, "bb", now); err != nil {
		t.Fatalf("Store(2) = %v", err)
	}
	if got := s.NextMissing(); got != 1 {
		t.Fatalf("NextMissing after storing 2 = %d, want 1", got)
	}

	if err := s.Store("!node1", 3, 1, "aa", now); err != nil {
		t.Fatalf("Store(1) = %v", err)
	}
	if got := s.NextMissing(); got != 3 {
		t.Fatalf("NextMissing after storing 1,2 = %d, want 3", got)
	}

	if err := s.Store("!node1", 3, 3, "cc", now); err != nil {
		t.Fatalf("Store(3) = %v", err)
	}
	if !s.Complete() {
		t.Fatalf("expected session complete")
	}
	if got := s.Concat(); got != "aabbcc" {
		t.Errorf("Concat() = %q, want aabbcc", got)
	}
}

func TestSessionStoreSenderMismatch(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 2, now)
	if err := s.Store("!node2", 2, 1, "aa", now); err != ErrSenderMismatch {
		t.Errorf("err = %v, want ErrSenderMismatch", err)
	}
}

func TestSessionStoreTotalMismatch(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 3, now)
	if err := s.Store("!node1", 4, 1, "aa", now); err != ErrTotalMismatch {
		t.Errorf("err = %v, want ErrTotalMismatch", err)
	}
}

func TestSessionStoreDuplicateIdenticalIsNoop(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 2, now)
	if err := s.Store("!node1", 2, 1, "aa", now); err != nil {
		t.Fatalf("first store: %v", err)
	}
	later := now.Add(time.Second)
	if err := s.Store("!node1", 2, 1, "aa", later); err != nil {
		t.Fatalf("duplicate identical store: %v", err)
	}
	if !s.LastActivity.Equal(later) {
		t.Errorf("LastActivity not refreshed on duplicate store")
	}
}

func TestSessionStoreDuplicateMismatch(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 2, now)
	if err := s.Store("!node1", 2, 1, "aa", now); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if err := s.Store("!node1", 2, 1, "bb", now); err != ErrDuplicateMismatch {
		t.Errorf("err = %v, want ErrDuplicateMismatch", err)
	}
}

func TestSessionStoreRejectsAfterNotCollecting(t *testing.T) {
	now := time.Now()
	s := NewSession("abcde", "!node1", 1, now)
	s.Status = Terminal
	if err := s.Store("!node1", 1, 1, "aa", now); err != ErrNotCollecting {
		t.Errorf("err = %v, want ErrNotCollecting", err)
	}
}
