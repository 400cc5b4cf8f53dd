package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

type DeviceStore struct {
	mu   sync.RWMutex
	seen map[string]store.DeviceRecord
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{
		seen: make(map[string]store.DeviceRecord),
	}
}

func (s *DeviceStore) MarkSeen(_ context.Context, deviceID string, kind types.Kind, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[deviceID] = store.DeviceRecord{DeviceID: deviceID, LastSeen: t, LastKind: kind}
	return nil
}

func (s *DeviceStore) List(_ context.Context) ([]store.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.DeviceRecord, 0, len(s.seen))
	for _, rec := range s.seen {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}
