package orchestrator

import (
	"sync"
	"time"
)

// sentNotification is what a pushed card carried, so a refresh pressed on it can
// re-render the same hires.
type sentNotification struct {
	Group     string
	RecordIDs []string
	At        time.Time
}

// sentLog maps message ids to what they carried. Oldest entries are evicted
// once capacity is reached.
type sentLog struct {
	mu       sync.Mutex
	capacity int
	order    []string
	byID     map[string]sentNotification
}

func newSentLog(capacity int) *sentLog {
	if capacity <= 0 {
		capacity = 200
	}
	return &sentLog{capacity: capacity, byID: make(map[string]sentNotification, capacity)}
}

func (l *sentLog) record(messageID string, n sentNotification) {
	if messageID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[messageID]; !ok {
		l.order = append(l.order, messageID)
	}
	l.byID[messageID] = n
	for len(l.order) > l.capacity {
		delete(l.byID, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *sentLog) lookup(messageID string) (sentNotification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.byID[messageID]
	return n, ok
}

func (l *sentLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
