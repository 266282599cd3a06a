package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"onboard/pkg/requestcontext"
)

// DefaultCapacity bounds the in-memory log when no capacity is configured.
const DefaultCapacity = 500

// Log is an append-only ring buffer. Once full, each append evicts the oldest
// entry. Entries are copied in and out, so callers cannot mutate history.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	head    int // index of the oldest entry
	size    int

	outbox  chan<- Entry
	logger  *slog.Logger
	dropped int
}

type LogOption func(l *Log)

func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) {
		l.logger = logger
	}
}

// WithOutbox forwards every appended entry to ch without blocking. When ch is
// full the entry stays in the log but is not exported.
func WithOutbox(ch chan<- Entry) LogOption {
	return func(l *Log) {
		l.outbox = ch
	}
}

// NewLog constructs a Log holding at most capacity entries.
func NewLog(capacity int, opts ...LogOption) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{entries: make([]Entry, capacity)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores e, filling in the id, timestamp, operator and request id from
// ctx when they are unset, and returns the stored entry.
func (l *Log) Append(ctx context.Context, e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.Operator == "" {
		e.Operator = requestcontext.Operator(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}

	l.mu.Lock()
	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.head+l.size)%capacity] = e
		l.size++
	} else {
		l.entries[l.head] = e
		l.head = (l.head + 1) % capacity
	}
	forwarded := l.forward(e)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.InfoContext(ctx, string(e.Action),
			"subject", e.Subject,
			"operator", e.Operator,
			"success", e.Success,
			"detail", e.Detail,
			"log_type", "audit",
		)
		if !forwarded {
			l.logger.WarnContext(ctx, "audit export queue full, entry not exported",
				"entry_id", e.ID,
			)
		}
	}
	return e
}

// forward must be called with l.mu held.
func (l *Log) forward(e Entry) bool {
	if l.outbox == nil {
		return true
	}
	select {
	case l.outbox <- e:
		return true
	default:
		l.dropped++
		return false
	}
}

// Recent returns up to count entries, newest first. count <= 0 returns all.
func (l *Log) Recent(count int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count <= 0 || count > l.size {
		count = l.size
	}
	out := make([]Entry, 0, count)
	capacity := len(l.entries)
	for i := 0; i < count; i++ {
		idx := (l.head + l.size - 1 - i) % capacity
		out = append(out, l.entries[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of entries held.
func (l *Log) Capacity() int {
	return len(l.entries)
}

// Dropped returns how many entries could not be queued for export.
func (l *Log) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
