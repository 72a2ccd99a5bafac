package netaudit

import (
	"path/filepath"
	"testing"
	"time"

	"moltis/internal/netfilter"
)

func mkEntry(domain string, action netfilter.FilterOutcome) netfilter.AuditEntry {
	return netfilter.AuditEntry{
		Timestamp: time.Now().UTC(),
		Session:   "s1",
		Domain:    domain,
		Port:      443,
		Protocol:  netfilter.ProtocolHTTPConnect,
		Action:    action,
	}
}

func TestBuffer_RingEviction(t *testing.T) {
	b := NewBuffer(3, nil)
	for i := 0; i < 5; i++ {
		b.Push(mkEntry("d.com", netfilter.OutcomeAllowed))
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
}

func TestBuffer_ArrivalOrderPreserved(t *testing.T) {
	b := NewBuffer(10, nil)
	domains := []string{"a.com", "b.com", "c.com"}
	for _, d := range domains {
		b.Push(mkEntry(d, netfilter.OutcomeAllowed))
	}
	entries := b.Tail(10)
	for i, e := range entries {
		if e.Domain != domains[i] {
			t.Errorf("entries[%d].Domain = %q, want %q", i, e.Domain, domains[i])
		}
	}
}

func TestBuffer_MinCapacityLen(t *testing.T) {
	b := NewBuffer(5, nil)
	b.Push(mkEntry("a.com", netfilter.OutcomeAllowed))
	b.Push(mkEntry("b.com", netfilter.OutcomeAllowed))
	if b.Len() != 2 {
		t.Fatalf("len = %d, want min(n, capacity) = 2", b.Len())
	}
}

func TestBuffer_FilterByDomainAndAction(t *testing.T) {
	b := NewBuffer(10, nil)
	b.Push(mkEntry("github.com", netfilter.OutcomeAllowed))
	b.Push(mkEntry("evil.com", netfilter.OutcomeDenied))
	b.Push(mkEntry("github.com", netfilter.OutcomeDenied))

	entries := b.List(Filter{Domain: "github.com", Action: netfilter.OutcomeDenied}, 10)
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
}

func TestBuffer_FileFallbackWhenMemoryEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	b := NewBuffer(10, nil)
	if err := b.EnablePersistence(path); err != nil {
		t.Fatal(err)
	}
	b.Push(mkEntry("persisted.com", netfilter.OutcomeAllowed))

	// Simulate a cold process: new buffer, same file, nothing in memory yet.
	cold := NewBuffer(10, nil)
	if err := cold.EnablePersistence(path); err != nil {
		t.Fatal(err)
	}
	entries := cold.List(Filter{}, 10)
	if len(entries) != 1 || entries[0].Domain != "persisted.com" {
		t.Fatalf("expected cold read to recover persisted entry, got %+v", entries)
	}
}

func TestBuffer_TailNeverFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	b := NewBuffer(10, nil)
	b.EnablePersistence(path)
	b.Push(mkEntry("x.com", netfilter.OutcomeAllowed))

	cold := NewBuffer(10, nil)
	cold.EnablePersistence(path)
	if len(cold.Tail(10)) != 0 {
		t.Fatal("Tail should never cold-read from file")
	}
}

func TestBuffer_Stats(t *testing.T) {
	b := NewBuffer(10, nil)
	b.Push(mkEntry("a.com", netfilter.OutcomeAllowed))
	b.Push(mkEntry("a.com", netfilter.OutcomeDenied))
	b.Push(mkEntry("b.com", netfilter.OutcomeApprovedByUser))

	stats := b.SnapshotStats()
	if stats.Total != 3 || stats.Allowed != 2 || stats.Denied != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.ByDomain["a.com"] != 2 {
		t.Fatalf("by_domain[a.com] = %d, want 2", stats.ByDomain["a.com"])
	}
}

func TestBuffer_PushWithoutPersistenceStillKeepsEntry(t *testing.T) {
	b := NewBuffer(10, nil)
	b.Push(mkEntry("a.com", netfilter.OutcomeAllowed))
	if b.Len() != 1 {
		t.Fatalf("len = %d, want 1", b.Len())
	}
}
