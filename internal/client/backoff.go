package client

import "time"

// Backoff computes reconnect delays: Base doubled per consecutive failure,
// capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 10 * time.Second}
}

// Delay returns the wait before retry number attempt (1-based):
// min(Max, Base * 2^(attempt-1)).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		if d >= b.Max {
			break
		}
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}
