package store

import (
	"context"
	"strings"
)

// MemberRecord is the directory's view of a member bound to a tag.
type MemberRecord struct {
	ID             string
	FirstName      string
	LastName       string
	Roles          []string
	PreferredTheme string
	IsActive       bool
}

// MemberDirectory resolves a card UID to the member it is bound to.
//
// With activeOnly set, only an active binding to an active member matches.
// Without it, the most relevant binding is returned regardless of state, so
// callers can tell a deactivated member apart from a UID that was never
// registered. A nil record with a nil error means no binding exists.
type MemberDirectory interface {
	LookupByTag(ctx context.Context, uid string, activeOnly bool) (*MemberRecord, error)
}

// AdminAllowList is a static set of UIDs treated as administrator
// credentials. Matching is case-insensitive.
type AdminAllowList struct {
	uids map[string]struct{}
}

func NewAdminAllowList(uids []string) AdminAllowList {
	m := make(map[string]struct{}, len(uids))
	for _, u := range uids {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			m[u] = struct{}{}
		}
	}
	return AdminAllowList{uids: m}
}

func (a AdminAllowList) Contains(uid string) bool {
	_, ok := a.uids[strings.ToLower(strings.TrimSpace(uid))]
	return ok
}

func (a AdminAllowList) Len() int { return len(a.uids) }
