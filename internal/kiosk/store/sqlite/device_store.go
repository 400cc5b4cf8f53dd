package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/kioskauth/internal/db"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// DeviceStore keeps one last-seen row per bridge device.
type DeviceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDeviceStore(db *sql.DB, writer *dbpkg.Worker) *DeviceStore {
	return &DeviceStore{db: db, writer: writer}
}

func (s *DeviceStore) MarkSeen(ctx context.Context, deviceID string, kind types.Kind, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(device_id, last_seen_at_ms, last_kind)
VALUES (?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  last_seen_at_ms = MAX(devices.last_seen_at_ms, excluded.last_seen_at_ms),
  last_kind = CASE
    WHEN excluded.last_seen_at_ms >= devices.last_seen_at_ms THEN excluded.last_kind
    ELSE devices.last_kind
  END;
`, deviceID, ms, string(kind)); err != nil {
			return fmt.Errorf("MarkSeen upsert: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) List(ctx context.Context) ([]store.DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT device_id, last_seen_at_ms, last_kind FROM devices ORDER BY device_id;
`)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []store.DeviceRecord
	for rows.Next() {
		var (
			rec  store.DeviceRecord
			ms   int64
			kind string
		)
		if err := rows.Scan(&rec.DeviceID, &ms, &kind); err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		rec.LastSeen = time.UnixMilli(ms).UTC()
		rec.LastKind = types.Kind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}
