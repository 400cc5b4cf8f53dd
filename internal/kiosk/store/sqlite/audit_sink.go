package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/kioskauth/internal/db"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
)

// AuditSink appends audit entries to the audit_log table.
type AuditSink struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditSink(db *sql.DB, writer *dbpkg.Worker) *AuditSink {
	return &AuditSink{db: db, writer: writer}
}

func (s *AuditSink) Record(ctx context.Context, e store.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_log(
  audit_id, action, actor_id, target_type, target_id, device_id, source, reason, at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			e.ID, e.Action, nullable(e.ActorID), nullable(e.TargetType), nullable(e.TargetID),
			nullable(e.Device), nullable(e.Source), nullable(e.Reason), e.At.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Record insert: %w", err)
		}
		return nil
	})
}

// nullable maps "" to SQL NULL so optional audit columns stay empty.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
