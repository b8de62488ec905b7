package app

import (
	"sync"
	"time"
)

const subscriberBuffer = 16

// StatusUpdate is a snapshot of the status slot
type StatusUpdate struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusBoard holds the latest human-readable status and fans it out to
// subscribers. It implements domain.StatusReporter.
type StatusBoard struct {
	mu          sync.RWMutex
	current     StatusUpdate
	subscribers map[chan StatusUpdate]struct{}
	now         func() time.Time
}

// NewStatusBoard creates an empty status board
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		subscribers: make(map[chan StatusUpdate]struct{}),
		now:         time.Now,
	}
}

// Report replaces the current status and notifies subscribers.
// Subscribers that are not keeping up miss the update.
func (b *StatusBoard) Report(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = StatusUpdate{Status: status, UpdatedAt: b.now()}
	for ch := range b.subscribers {
		select {
		case ch <- b.current:
		default:
		}
	}
}

// Current returns the latest status
func (b *StatusBoard) Current() StatusUpdate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Subscribe returns a channel receiving every future update
func (b *StatusBoard) Subscribe() chan StatusUpdate {
	ch := make(chan StatusUpdate, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch and closes it
func (b *StatusBoard) Unsubscribe(ch chan StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *StatusBoard) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
