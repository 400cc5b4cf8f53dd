package store

import (
	"context"
	"time"
)

// Audit actions recorded by the ingest path.
const (
	ActionLogin         = "auth.login"
	ActionLoginAdminTag = "auth.login.admin-tag"
	ActionLoginInactive = "auth.login.inactive"
	ActionLoginInvalid  = "auth.login.invalid"
	ActionLogout        = "auth.logout"
)

// AuditEntry is one line of the audit log. ActorID and TargetID are empty
// when unknown (e.g. a scan of an unregistered tag).
type AuditEntry struct {
	ID         string
	Action     string
	ActorID    string
	TargetType string
	TargetID   string
	Device     string
	Source     string
	Reason     string
	At         time.Time
}

// AuditSink accepts audit entries. Writers treat it as fire-and-forget.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
}
