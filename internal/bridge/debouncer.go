package bridge

import (
	"sync"
	"time"
)

// Debouncer suppresses repeated reads of the same card. A read is dropped
// when it carries the same UID as the last accepted read and arrives within
// the window. Only accepted reads move the window.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastUID  string
	lastSeen time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, now: time.Now}
}

// Accept reports whether a read of uid should be forwarded.
func (d *Debouncer) Accept(uid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if uid == d.lastUID && !d.lastSeen.IsZero() && now.Sub(d.lastSeen) < d.window {
		return false
	}
	d.lastUID = uid
	d.lastSeen = now
	return true
}
