package utils

import (
	"sync"
	"time"
)

// Cooldown gates repeated events per key. Expired entries are overwritten on
// the next Try, so the map only grows with distinct active keys.
type Cooldown struct {
	mu   sync.Mutex
	ttl  time.Duration
	last map[string]time.Time
}

func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{ttl: ttl, last: make(map[string]time.Time)}
}

// Try reports whether the key is off cooldown and, if so, starts a new one.
func (c *Cooldown) Try(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[key]; ok && now.Sub(last) < c.ttl {
		return false
	}
	c.last[key] = now
	return true
}

// Remaining returns how long until the key is off cooldown, zero if it
// already is.
func (c *Cooldown) Remaining(key string, now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.last[key]
	if !ok {
		return 0
	}
	left := c.ttl - now.Sub(last)
	if left < 0 {
		return 0
	}
	return left
}
