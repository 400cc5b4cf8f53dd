package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sqlitestore "github.com/BrandonDHaskell/kioskauth/internal/kiosk/store/sqlite"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

func TestDeviceStore_MarkSeen_KeepsLatest(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDeviceStore(conn, w)
	ctx := context.Background()

	t0 := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ds.MarkSeen(ctx, "kiosk-01", types.KindHeartbeat, t0.Add(time.Minute)))
	// A late-arriving older submission must not move last_seen backwards.
	require.NoError(t, ds.MarkSeen(ctx, "kiosk-01", types.KindTag, t0))
	require.NoError(t, ds.MarkSeen(ctx, "kiosk-02", types.KindReader, t0))

	recs, err := ds.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.Equal(t, "kiosk-01", recs[0].DeviceID)
	require.True(t, recs[0].LastSeen.Equal(t0.Add(time.Minute)), "last_seen %s", recs[0].LastSeen)
	require.Equal(t, types.KindHeartbeat, recs[0].LastKind)

	require.Equal(t, "kiosk-02", recs[1].DeviceID)
	require.Equal(t, types.KindReader, recs[1].LastKind)
}

func TestDeviceStore_MarkSeen_IgnoresBlankDevice(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDeviceStore(conn, w)

	require.NoError(t, ds.MarkSeen(context.Background(), "  ", types.KindTag, time.Now()))

	recs, err := ds.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, recs)
}
