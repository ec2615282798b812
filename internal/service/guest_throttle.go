package service

import (
	"context"
	"sync"
	"time"

	"denguespot-chat/internal/observability"
)

const (
	// GuestRequestLimit is the number of assistant requests an
	// unauthenticated session may make inside one window.
	GuestRequestLimit = 2

	// guestWindow is the fixed counting window. A fixed window, not a
	// sliding one: the count resets in full when the window expires.
	guestWindow = 24 * time.Hour

	guestCleanupInterval = 1 * time.Hour
)

type guestEntry struct {
	count     int
	expiresAt time.Time
}

// GuestThrottle caps unauthenticated assistant usage per session id.
// Authenticated requests bypass the cap entirely (the caller simply
// does not consult the throttle for them).
type GuestThrottle struct {
	mu      sync.Mutex
	entries map[string]*guestEntry
	now     func() time.Time
	stopCh  chan struct{}
}

func NewGuestThrottle(ctx context.Context) *GuestThrottle {
	gt := &GuestThrottle{
		entries: make(map[string]*guestEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go gt.cleanupLoop(ctx)

	return gt
}

// Allow counts one request against the session and reports whether it is
// within the cap. The first call in a window starts the window.
func (gt *GuestThrottle) Allow(sessionID string) bool {
	gt.mu.Lock()
	defer gt.mu.Unlock()

	now := gt.now()
	entry, ok := gt.entries[sessionID]
	if !ok || now.After(entry.expiresAt) {
		gt.entries[sessionID] = &guestEntry{count: 1, expiresAt: now.Add(guestWindow)}
		return true
	}

	if entry.count >= GuestRequestLimit {
		observability.GuestThrottleHits.Inc()
		return false
	}

	entry.count++
	return true
}

// cleanupLoop periodically removes expired windows to bound memory.
func (gt *GuestThrottle) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(guestCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gt.stopCh:
			return
		case <-ticker.C:
			gt.cleanup()
		}
	}
}

func (gt *GuestThrottle) cleanup() {
	gt.mu.Lock()
	defer gt.mu.Unlock()

	now := gt.now()
	for key, entry := range gt.entries {
		if now.After(entry.expiresAt) {
			delete(gt.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (gt *GuestThrottle) Stop() {
	close(gt.stopCh)
}
