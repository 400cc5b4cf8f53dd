package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/store"
)

// MemberDirectory reads tag bindings from the members/member_tags tables.
// It never writes; the admin CRUD layer owns those rows.
type MemberDirectory struct {
	db *sql.DB
}

func NewMemberDirectory(db *sql.DB) *MemberDirectory {
	return &MemberDirectory{db: db}
}

const lookupActive = `
SELECT m.member_id, m.first_name, m.last_name, m.roles_json, m.preferred_theme, m.is_active
FROM member_tags t
JOIN members m ON m.member_id = t.member_id
WHERE t.tag_uid = ? AND t.is_active = 1 AND m.is_active = 1
ORDER BY t.created_at_ms DESC
LIMIT 1;
`

// Active bindings to active members sort first so the unrestricted lookup
// agrees with the active-only one whenever the latter would match.
const lookupAny = `
SELECT m.member_id, m.first_name, m.last_name, m.roles_json, m.preferred_theme, m.is_active
FROM member_tags t
JOIN members m ON m.member_id = t.member_id
WHERE t.tag_uid = ?
ORDER BY (t.is_active = 1 AND m.is_active = 1) DESC, t.created_at_ms DESC
LIMIT 1;
`

func (d *MemberDirectory) LookupByTag(ctx context.Context, uid string, activeOnly bool) (*store.MemberRecord, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, nil
	}

	q := lookupAny
	if activeOnly {
		q = lookupActive
	}

	var (
		rec       store.MemberRecord
		rolesJSON string
		theme     sql.NullString
		active    int
	)
	err := d.db.QueryRowContext(ctx, q, uid).Scan(
		&rec.ID, &rec.FirstName, &rec.LastName, &rolesJSON, &theme, &active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByTag query: %w", err)
	}

	if err := json.Unmarshal([]byte(rolesJSON), &rec.Roles); err != nil {
		return nil, fmt.Errorf("LookupByTag roles for %s: %w", rec.ID, err)
	}
	rec.PreferredTheme = theme.String
	rec.IsActive = active == 1

	return &rec, nil
}
