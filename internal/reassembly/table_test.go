package reassembly

import (
	"testing"
	"time"
)

func TestTableAddGetRemove(t *testing.T) {
	tbl := NewTable()
	s := NewSession("abcde", "!node1", 1, time.Now())

	if err := tbl.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tbl.Add(s); err != ErrSessionExists {
		t.Errorf("second Add err = %v, want ErrSessionExists", err)
	}

	got, ok := tbl.Get("abcde")
	if !ok || got != s {
		t.Fatalf("Get did not return the stored session")
	}

	tbl.Remove("abcde")
	if _, ok := tbl.Get("abcde"); ok {
		t.Errorf("session still present after Remove")
	}
}

func TestTableStaleCollecting(t *testing.T) {
	tbl := NewTable()
	now := time.Now()

	fresh := NewSession("fresh", "!node1", 1, now)
	stale := NewSession("stale", "!node2", 1, now.Add(-time.Hour))
	broadcasting := NewSession("bcast", "!node3", 1, now.Add(-time.Hour))
	broadcasting.Status = Broadcasting

	_ = tbl.Add(fresh)
	_ = tbl.Add(stale)
	_ = tbl.Add(broadcasting)

	got := tbl.StaleCollecting(now, time.Minute)
	if len(got) != 1 || got[0].SessionID != "stale" {
		t.Fatalf("StaleCollecting = %+v, want only [stale]", got)
	}
}

func TestTableReplayRingBounded(t *testing.T) {
	tbl := NewTableWithReplayCapacity(2)
	tbl.RememberTerminal("a", "msg-a")
	tbl.RememberTerminal("b", "msg-b")
	tbl.RememberTerminal("c", "msg-c")

	if _, ok := tbl.ReplayTerminal("a"); ok {
		t.Errorf("expected session a to be evicted from the replay ring")
	}
	if msg, ok := tbl.ReplayTerminal("b"); !ok || msg != "msg-b" {
		t.Errorf("ReplayTerminal(b) = %q, %v", msg, ok)
	}
	if msg, ok := tbl.ReplayTerminal("c"); !ok || msg != "msg-c" {
		t.Errorf("ReplayTerminal(c) = %q, %v", msg, ok)
	}
}

func TestTableReplayRingRefreshesOnRepeat(t *testing.T) {
	tbl := NewTableWithReplayCapacity(2)
	tbl.RememberTerminal("a", "msg-a")
	tbl.RememberTerminal("b", "msg-b")
	tbl.RememberTerminal("a", "msg-a-updated") // touches a again, b becomes oldest
	tbl.RememberTerminal("c", "msg-c")          // evicts b, not a

	if _, ok := tbl.ReplayTerminal("b"); ok {
		t.Errorf("expected session b to be evicted after a was refreshed")
	}
	if msg, ok := tbl.ReplayTerminal("a"); !ok || msg != "msg-a-updated" {
		t.Errorf("ReplayTerminal(a) = %q, %v", msg, ok)
	}
}
