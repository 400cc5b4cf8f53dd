package session

import "strings"

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleVorstand        Role = "vorstand"
	RoleBereichsleitung Role = "bereichsleitung"
	RoleMitglied        Role = "mitglied"
)

// rolePriority lists roles from most to least privileged.
var rolePriority = []Role{RoleAdmin, RoleVorstand, RoleBereichsleitung, RoleMitglied}

// ResolveRole picks the most privileged known role in roles. isAdmin forces
// RoleAdmin. A member with no recognised role is treated as RoleMitglied.
func ResolveRole(roles []string, isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	held := make(map[Role]bool, len(roles))
	for _, r := range roles {
		held[Role(strings.ToLower(strings.TrimSpace(r)))] = true
	}
	for _, r := range rolePriority {
		if held[r] {
			return r
		}
	}
	return RoleMitglied
}
