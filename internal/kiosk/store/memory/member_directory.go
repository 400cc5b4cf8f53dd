package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
)

type binding struct {
	uid      string
	memberID string
	active   bool
}

// MemberDirectory is an in-memory tag→member directory for tests and dev.
// Later bindings of the same UID take precedence over earlier ones.
type MemberDirectory struct {
	mu       sync.RWMutex
	members  map[string]store.MemberRecord
	bindings []binding
}

func NewMemberDirectory() *MemberDirectory {
	return &MemberDirectory{
		members: make(map[string]store.MemberRecord),
	}
}

// PutMember inserts or replaces a member.
func (d *MemberDirectory) PutMember(m store.MemberRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

// SetMemberActive flips a member's active flag. Unknown ids are ignored.
func (d *MemberDirectory) SetMemberActive(id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.members[id]; ok {
		m.IsActive = active
		d.members[id] = m
	}
}

// BindTag records a binding between uid and memberID.
func (d *MemberDirectory) BindTag(uid, memberID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings = append(d.bindings, binding{uid: uid, memberID: memberID, active: active})
}

func (d *MemberDirectory) LookupByTag(_ context.Context, uid string, activeOnly bool) (*store.MemberRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var fallback *store.MemberRecord
	for i := len(d.bindings) - 1; i >= 0; i-- {
		b := d.bindings[i]
		if b.uid != uid {
			continue
		}
		m, ok := d.members[b.memberID]
		if !ok {
			continue
		}
		if b.active && m.IsActive {
			return &m, nil
		}
		if !activeOnly && fallback == nil {
			fallback = &m
		}
	}
	if activeOnly {
		return nil, nil
	}
	return fallback, nil
}
