package genimage

import (
	"sync"
	"time"
)

// QuotaLimiter enforces a per-user sliding window over image generations.
// Each successful Allow records a hit; hits older than the window fall out.
// When the quota is exhausted the returned reset instant is when the oldest
// surviving hit leaves the window, i.e. the earliest moment a new generation
// will be admitted.
type QuotaLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now func() time.Time
}

func NewQuotaLimiter(limit int, window time.Duration) *QuotaLimiter {
	return &QuotaLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether userID may generate another image now. On rejection
// the second return value is the instant the quota window reopens.
func (l *QuotaLimiter) Allow(userID string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[userID][:0]
	for _, hit := range l.hits[userID] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}

	if len(kept) >= l.limit {
		l.hits[userID] = kept
		return false, kept[0].Add(l.window)
	}

	l.hits[userID] = append(kept, now)
	return true, time.Time{}
}
