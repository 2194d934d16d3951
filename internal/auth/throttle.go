package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/growlin/internal/config"
)

// LoginThrottle counts failed logins per client address and username.
// Borrowers share kiosks, so one borrower's typos never lock out the others
// logging in from the same terminal.
type LoginThrottle struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	lockout time.Duration
	now     func() time.Time
	entries map[throttleKey]*throttleEntry
	writes  int
}

type throttleKey struct {
	addr     string
	username string
}

type throttleEntry struct {
	failures    int
	since       time.Time
	lockedUntil time.Time
}

// stale entries are swept every sweepEvery recorded failures
const sweepEvery = 64

// NewLoginThrottle builds a throttle from the auth settings, falling back
// to five failures in fifteen minutes and a thirty minute lockout.
func NewLoginThrottle(cfg config.Auth) *LoginThrottle {
	t := &LoginThrottle{
		limit:   cfg.MaxLoginAttempts,
		window:  cfg.RateLimitWindow,
		lockout: cfg.LockoutDuration,
		now:     time.Now,
		entries: make(map[throttleKey]*throttleEntry),
	}
	if t.limit <= 0 {
		t.limit = 5
	}
	if t.window <= 0 {
		t.window = 15 * time.Minute
	}
	if t.lockout <= 0 {
		t.lockout = 30 * time.Minute
	}
	return t
}

func keyFor(addr, username string) throttleKey {
	return throttleKey{addr: addr, username: strings.ToLower(strings.TrimSpace(username))}
}

// Wait reports how long the caller must wait before trying again.
// Zero means the attempt may go ahead.
func (t *LoginThrottle) Wait(addr, username string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[keyFor(addr, username)]
	if !ok {
		return 0
	}
	now := t.now()
	if now.Before(e.lockedUntil) {
		return e.lockedUntil.Sub(now)
	}
	return 0
}

// Fail records a failed attempt and returns the lockout it started, if any.
func (t *LoginThrottle) Fail(addr, username string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := keyFor(addr, username)
	e, ok := t.entries[key]
	if !ok || t.expired(e, now) {
		e = &throttleEntry{since: now}
		t.entries[key] = e
	}
	e.failures++

	t.writes++
	if t.writes%sweepEvery == 0 {
		t.sweep(now)
	}

	if e.failures < t.limit {
		return 0
	}
	e.lockedUntil = now.Add(t.lockout)
	return t.lockout
}

// Forget clears the record after a successful login.
func (t *LoginThrottle) Forget(addr, username string) {
	t.mu.Lock()
	delete(t.entries, keyFor(addr, username))
	t.mu.Unlock()
}

// Len returns the number of tracked address and username pairs.
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *LoginThrottle) expired(e *throttleEntry, now time.Time) bool {
	return now.Sub(e.since) > t.window && !now.Before(e.lockedUntil)
}

// sweep drops entries whose window and lockout have both passed. Callers hold mu.
func (t *LoginThrottle) sweep(now time.Time) {
	for key, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, key)
		}
	}
}
