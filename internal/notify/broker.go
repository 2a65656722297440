// Package notify is the in-process fanout for derived progress. Sinks
// (WebSocket hub, Telegram) subscribe through an explicit handle instead of
// registering into process-wide listener state, so they can be attached and
// torn down independently in tests and at shutdown.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mtsiakos/skopos/internal/progress"
)

// Notification types.
const (
	TypeQueryStarted    = "query_started"
	TypeQueryProgress   = "query_progress"
	TypeQueryCompleted  = "query_completed"
	TypeQueryCancelled  = "query_cancelled"
	TypeQuerySuperseded = "query_superseded"
	TypeRunsPruned      = "runs_pruned"
)

type Notification struct {
	Type      string             `json:"type"`
	QueryID   string             `json:"query_id,omitempty"`
	Question  string             `json:"question,omitempty"`
	Overview  *progress.Overview `json:"overview,omitempty"`
	Data      map[string]any     `json:"data,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Terminal reports whether the notification marks the end of a query.
func (n Notification) Terminal() bool {
	return n.Type == TypeQueryCompleted || n.Type == TypeQueryCancelled
}

type Broker struct {
	mu   sync.RWMutex
	subs map[int]chan Notification
	next int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Notification)}
}

// Subscribe returns a channel of notifications and a cancel func that closes
// it. The buffer bounds how far a slow consumer may lag before it starts
// losing notifications.
func (b *Broker) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Notification, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers n to every subscriber without blocking; a full subscriber
// channel drops the notification.
func (b *Broker) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			slog.Warn("notification subscriber full, dropping", "type", n.Type, "query", n.QueryID)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
