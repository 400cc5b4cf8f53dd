package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
)

const auditTimeout = 5 * time.Second

// AuditRecorder hands entries to an AuditSink without blocking the caller.
// Sink failures are logged and dropped; an audit write must never hold up
// or fail the event it describes.
type AuditRecorder struct {
	sink   store.AuditSink
	logger *log.Logger
	wg     sync.WaitGroup
}

func NewAuditRecorder(sink store.AuditSink, logger *log.Logger) *AuditRecorder {
	return &AuditRecorder{sink: sink, logger: logger}
}

func (a *AuditRecorder) Record(e store.AuditEntry) {
	if a == nil || a.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	a.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := a.sink.Record(ctx, e); err != nil {
			a.logger.Printf("audit write failed action=%s: %v", e.Action, err)
		}
	})
}

// Wait blocks until every in-flight write has finished.
func (a *AuditRecorder) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
