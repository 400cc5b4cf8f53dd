package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// DeviceRecord is the last-seen snapshot of one bridge device.
type DeviceRecord struct {
	DeviceID string
	LastSeen time.Time
	LastKind types.Kind
}

type DeviceStore interface {
	MarkSeen(ctx context.Context, deviceID string, kind types.Kind, t time.Time) error
	List(ctx context.Context) ([]DeviceRecord, error)
}
