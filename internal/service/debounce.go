package service

import (
	"sync"
	"time"
)

// Debounce suppresses redundant folder listings triggered by bursts of
// near-duplicate Drive notifications. Keyed by folder, not channel: renewal
// swaps channel ids but folder identity is stable, so a renewal mid-burst
// cannot reset the baseline.
type Debounce struct {
	mu        sync.Mutex
	lastCheck map[string]time.Time
	interval  time.Duration
}

func NewDebounce(interval time.Duration) *Debounce {
	return &Debounce{
		// No eviction: the watched folder set is small and static.
		lastCheck: make(map[string]time.Time),
		interval:  interval,
	}
}

// Allow reports whether a listing for folderID may run at now, recording now as
// the folder's last check only when it may. On rejection the stored baseline is
// left untouched, so the next arrival is judged against the same point in time.
func (d *Debounce) Allow(folderID string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.lastCheck[folderID]
	if ok && now.Sub(last) < d.interval {
		return false
	}

	d.lastCheck[folderID] = now
	return true
}
