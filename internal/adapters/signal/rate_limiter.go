package signal

import (
	"sync"
	"time"

	"github.com/anhdn/peercall/internal/domain"
)

// InviteRateLimiter caps how many call invites a peer may send within
// a sliding window, so one connection cannot spam-ring everyone.
type InviteRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.PeerID][]time.Time
	limit    int
	interval time.Duration
}

func NewInviteRateLimiter(limit int, interval time.Duration) *InviteRateLimiter {
	return &InviteRateLimiter{
		history:  make(map[domain.PeerID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *InviteRateLimiter) Allow(pid domain.PeerID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[pid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[pid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[pid] = fresh
	return true
}

// Forget drops the window for a disconnected peer.
func (rl *InviteRateLimiter) Forget(pid domain.PeerID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, pid)
}
