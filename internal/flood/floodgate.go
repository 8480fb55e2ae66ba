// Package flood throttles resolution requests per field and editor.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the sliding window resolve requests are counted in
	windowDuration = 60 * time.Second
	// cleanupInterval is how often idle entries are swept
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long an entry may stay unused before it is swept
	idleTimeout = 10 * time.Minute
)

// Floodgate rate limits resolve requests with a per-minute sliding window,
// keyed by scope (the field slot) and requester.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*requesterEntry // Key: "scope|requester"
	mutex          sync.RWMutex
	stopCleanup    chan struct{}
	stopOnce       sync.Once
	now            func() time.Time
}

// requesterEntry holds the request times of one requester in one scope.
type requesterEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Floodgate allowing limitPerMinute requests per scope and
// requester. A limit of zero rejects everything.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*requesterEntry),
		stopCleanup:    make(chan struct{}),
		now:            time.Now,
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background cleanup goroutine. It is safe to call twice.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCleanup) })
}

// Allow records a request and reports whether it is within the limit. When
// it is not, the returned duration is how long until a slot frees up.
func (fg *Floodgate) Allow(scope, requester string) (bool, time.Duration) {
	key := scope + "|" + requester

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	now := fg.now()

	entry, exists := fg.entries[key]
	if !exists {
		entry = &requesterEntry{
			timestamps: make([]time.Time, 0, max(fg.limitPerMinute, 0)+1),
		}
		fg.entries[key] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limitPerMinute {
		if len(entry.timestamps) == 0 {
			return false, windowDuration
		}
		return false, entry.timestamps[0].Add(windowDuration).Sub(now)
	}

	entry.timestamps = append(entry.timestamps, now)
	return true, 0
}

func (fg *Floodgate) cleanup() {
	fg.performCleanup()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns floodgate statistics.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	return Stats{
		ActiveRequesters: len(fg.entries),
		LimitPerMinute:   fg.limitPerMinute,
		WindowSeconds:    int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics.
type Stats struct {
	ActiveRequesters int `json:"active_requesters"`
	LimitPerMinute   int `json:"limit_per_minute"`
	WindowSeconds    int `json:"window_seconds"`
}
