package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/kioskauth/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenMemory(context.Background(), strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err, "openTestDB")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedMember inserts a member row the way the admin CRUD layer would.
func seedMember(t *testing.T, conn *sql.DB, id, rolesJSON string, active bool) {
	t.Helper()
	nowMs := time.Now().UTC().UnixMilli()
	_, err := conn.ExecContext(context.Background(), `
INSERT INTO members(member_id, first_name, last_name, roles_json, preferred_theme, is_active, created_at_ms, updated_at_ms)
VALUES (?, 'Test', ?, ?, 'dark', ?, ?, ?);`, id, id, rolesJSON, boolInt(active), nowMs, nowMs)
	require.NoError(t, err, "seedMember(%s)", id)
}

// seedTag binds uid to memberID; createdMs orders bindings of the same UID.
func seedTag(t *testing.T, conn *sql.DB, tagID, uid, memberID string, active bool, createdMs int64) {
	t.Helper()
	_, err := conn.ExecContext(context.Background(), `
INSERT INTO member_tags(tag_id, tag_uid, member_id, is_active, created_at_ms)
VALUES (?, ?, ?, ?, ?);`, tagID, uid, memberID, boolInt(active), createdMs)
	require.NoError(t, err, "seedTag(%s)", tagID)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
