package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
)

// AuditSink is an in-memory append-only audit log.
// It is intended for use in tests and dev environments.
type AuditSink struct {
	mu      sync.Mutex
	entries []store.AuditEntry
}

func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Record(_ context.Context, e store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of all recorded entries.  Test-only helper.
func (s *AuditSink) Entries() []store.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
