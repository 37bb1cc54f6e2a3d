package ratelimiter

import (
	"sync"
	"time"

	"github.com/ether/easysync/lib/settings"
)

type IPAddress string

type Event struct {
	LastOccurrence time.Time
}

// RateLimiter allows every IP address a number of points per sliding window.
type RateLimiter struct {
	Mu          sync.Mutex
	RateLimiter map[IPAddress][]Event
	limiting    settings.CommitRateLimiting
	now         func() time.Time
}

func NewRateLimiter(limiting settings.CommitRateLimiting) *RateLimiter {
	return &RateLimiter{
		RateLimiter: make(map[IPAddress][]Event),
		limiting:    limiting,
		now:         time.Now,
	}
}

type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "rate limit exceeded"
}

// CheckRateLimit records an event for ip and fails once ip spent more points
// than allowed within the window.
func (r *RateLimiter) CheckRateLimit(ip IPAddress) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	now := r.now()
	cutoff := now.Add(-time.Duration(r.limiting.Duration) * time.Second)

	// Clean up old events
	filteredEvents := make([]Event, 0, len(r.RateLimiter[ip])+1)
	for _, event := range r.RateLimiter[ip] {
		if event.LastOccurrence.After(cutoff) {
			filteredEvents = append(filteredEvents, event)
		}
	}
	filteredEvents = append(filteredEvents, Event{LastOccurrence: now})
	r.RateLimiter[ip] = filteredEvents

	if len(filteredEvents) > r.limiting.Points {
		return ErrRateLimitExceeded{}
	}
	return nil
}

// Forget drops the events of ip.
func (r *RateLimiter) Forget(ip IPAddress) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	delete(r.RateLimiter, ip)
}
