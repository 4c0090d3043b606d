package journal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ykjam/cardpay/pkg"
)

var ErrNotFound = errors.New("attempt not found")

// Journal keeps the latest known result of each payment attempt.
type Journal interface {
	Record(ctx context.Context, attemptID string, result pkg.PaymentResult) error
	Lookup(ctx context.Context, attemptID string) (Entry, error)
}

type Entry struct {
	AttemptID string            `json:"attempt_id"`
	Result    pkg.PaymentResult `json:"result"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type memoryJournal struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryJournal keeps entries in process memory. Like the Redis journal,
// an entry is forgotten ttl after its last update; ttl <= 0 keeps everything.
func NewMemoryJournal(ttl time.Duration) Journal {
	return &memoryJournal{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (j *memoryJournal) expired(e Entry, now time.Time) bool {
	return j.ttl > 0 && !now.Before(e.UpdatedAt.Add(j.ttl))
}

func (j *memoryJournal) Record(_ context.Context, attemptID string, result pkg.PaymentResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for id, e := range j.entries {
		if j.expired(e, now) {
			delete(j.entries, id)
		}
	}
	j.entries[attemptID] = Entry{AttemptID: attemptID, Result: result, UpdatedAt: now}
	return nil
}

func (j *memoryJournal) Lookup(_ context.Context, attemptID string) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	e, ok := j.entries[attemptID]
	if !ok || j.expired(e, j.now()) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}
