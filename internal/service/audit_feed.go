package service

import (
	"sync"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// AuditFeed fans new audit entries out to live subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the entry.
type AuditFeed struct {
	mu   sync.Mutex
	subs map[chan domain.AuditEntry]struct{}
}

// NewAuditFeed creates an empty feed
func NewAuditFeed() *AuditFeed {
	return &AuditFeed{subs: make(map[chan domain.AuditEntry]struct{})}
}

// Subscribe registers a listener; call the returned function to unsubscribe
func (f *AuditFeed) Subscribe(buffer int) (<-chan domain.AuditEntry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.AuditEntry, buffer)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers entry to every subscriber with room in its buffer
func (f *AuditFeed) Publish(entry domain.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Subscribers returns the number of active listeners
func (f *AuditFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
