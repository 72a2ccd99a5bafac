// Package netaudit implements the in-memory audit ring buffer the trusted
// proxy pushes every connection's AuditEntry into, with optional append-only
// JSONL file persistence and cold-read fallback.
package netaudit

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"

	"moltis/internal/netfilter"
)

const defaultCapacity = 2000

// Filter narrows a List query. Zero-value fields are ignored; all set
// fields are ANDed together. Search matches a case-insensitive substring
// across domain, URL, and error.
type Filter struct {
	Domain   string
	Protocol netfilter.NetworkProtocol
	Action   netfilter.FilterOutcome
	Search   string
}

func (f Filter) matches(e netfilter.AuditEntry) bool {
	if f.Domain != "" && !strings.Contains(e.Domain, f.Domain) {
		return false
	}
	if f.Protocol != "" && e.Protocol != f.Protocol {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		url := ""
		if e.URL != nil {
			url = *e.URL
		}
		errStr := ""
		if e.Error != nil {
			errStr = *e.Error
		}
		haystack := strings.ToLower(e.Domain + " " + url + " " + errStr)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// Stats summarizes the buffer's contents.
type Stats struct {
	Total    int            `json:"total"`
	Allowed  int            `json:"allowed"`
	Denied   int            `json:"denied"`
	ByDomain map[string]int `json:"by_domain"`
}

// Buffer is a fixed-capacity, oldest-eviction ring buffer of AuditEntry,
// with optional best-effort file persistence.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  []netfilter.AuditEntry

	filePath string
	file     *os.File
	logger   *slog.Logger
}

// NewBuffer creates a ring buffer holding at most capacity entries. If
// capacity <= 0, defaultCapacity is used.
func NewBuffer(capacity int, logger *slog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{capacity: capacity, logger: logger}
}

// EnablePersistence opens path for append and mirrors every future Push
// into it as a JSONL line. Persistence failures are logged, never dropped
// from the in-memory buffer.
func (b *Buffer) EnablePersistence(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.filePath = path
	b.file = f
	b.mu.Unlock()
	return nil
}

// FilePath returns the persistence path, if any.
func (b *Buffer) FilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filePath
}

// Push appends an entry, evicting the oldest entry if the buffer is full.
func (b *Buffer) Push(e netfilter.AuditEntry) {
	b.mu.Lock()
	if len(b.entries) >= b.capacity {
		b.entries = append(b.entries[1:], e)
	} else {
		b.entries = append(b.entries, e)
	}
	file := b.file
	b.mu.Unlock()

	if file == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("netaudit: marshal entry for persistence", "error", err)
		return
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		b.logger.Warn("netaudit: write entry to audit log", "error", err)
	}
}

// List returns up to limit matching entries, most recent last, from
// memory. If the in-memory buffer has nothing matching, it falls back to
// a cold read of the persisted file.
func (b *Buffer) List(filter Filter, limit int) []netfilter.AuditEntry {
	entries := b.listFromMemory(filter, limit)
	if len(entries) > 0 {
		return entries
	}
	return b.listFromFile(filter, limit)
}

// Tail always returns the most recent entries currently in memory,
// unfiltered — it never falls back to the file.
func (b *Buffer) Tail(limit int) []netfilter.AuditEntry {
	return b.listFromMemory(Filter{}, limit)
}

func (b *Buffer) listFromMemory(filter Filter, limit int) []netfilter.AuditEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []netfilter.AuditEntry
	for _, e := range b.entries {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return capTail(out, limit)
}

func (b *Buffer) listFromFile(filter Filter, limit int) []netfilter.AuditEntry {
	path := b.FilePath()
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		b.logger.Warn("netaudit: open audit log for cold read", "error", err)
		return nil
	}
	defer f.Close()

	var out []netfilter.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var e netfilter.AuditEntry
		if json.Unmarshal(scanner.Bytes(), &e) != nil {
			continue
		}
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return capTail(out, limit)
}

func capTail(entries []netfilter.AuditEntry, limit int) []netfilter.AuditEntry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	return entries[len(entries)-limit:]
}

// SnapshotStats computes aggregate counters over the entries currently in
// memory.
func (b *Buffer) SnapshotStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{ByDomain: make(map[string]int)}
	for _, e := range b.entries {
		stats.Total++
		switch e.Action {
		case netfilter.OutcomeAllowed, netfilter.OutcomeApprovedByUser:
			stats.Allowed++
		case netfilter.OutcomeDenied, netfilter.OutcomeTimeout:
			stats.Denied++
		}
		stats.ByDomain[e.Domain]++
	}
	return stats
}

// Close flushes and closes the persistence file, if any.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	return b.file.Close()
}

// Len reports how many entries are currently held in memory.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
