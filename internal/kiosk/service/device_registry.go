package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// DeviceRegistry tracks when each bridge device last submitted anything.
type DeviceRegistry struct {
	store store.DeviceStore
}

func NewDeviceRegistry(st store.DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{store: st}
}

func (r *DeviceRegistry) NoteSeen(ctx context.Context, deviceID string, kind types.Kind) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, deviceID, kind, time.Now().UTC())
}

func (r *DeviceRegistry) Devices(ctx context.Context) ([]store.DeviceRecord, error) {
	return r.store.List(ctx)
}
