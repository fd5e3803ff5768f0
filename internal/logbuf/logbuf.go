package logbuf

import (
	"sync"
	"time"

	"signal-scanner/internal/domain"
)

// DefaultCapacity is the number of entries kept before the oldest are dropped.
const DefaultCapacity = 100

// Buffer is the operator-facing activity log. Entries are kept newest first
// and the buffer is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	entries  []domain.LogEntry
	capacity int
	now      func() time.Time
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]domain.LogEntry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

func (b *Buffer) Add(level domain.LogLevel, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := domain.LogEntry{Timestamp: b.now().UTC(), Level: level, Message: message}
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, domain.LogEntry{})
	}
	copy(b.entries[1:], b.entries[:len(b.entries)-1])
	b.entries[0] = entry
}

func (b *Buffer) Info(message string)  { b.Add(domain.LogInfo, message) }
func (b *Buffer) Warn(message string)  { b.Add(domain.LogWarn, message) }
func (b *Buffer) Error(message string) { b.Add(domain.LogError, message) }

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (b *Buffer) Recent(limit int) []domain.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LogEntry, n)
	copy(out, b.entries[:n])
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}
