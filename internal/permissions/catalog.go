package permissions

import (
	"errors"
	"fmt"
	"strings"
)

// Permission identifies a capability that can be granted to a role. The set of
// identifiers is closed: only the constants below are valid.
type Permission string

const (
	RolesView   Permission = "ROLES_VIEW"
	RolesModify Permission = "ROLES_MODIFY"
	UsersView   Permission = "USERS_VIEW"
	UsersModify Permission = "USERS_MODIFY"
	PosView     Permission = "POS_VIEW"
	PosModify   Permission = "POS_MODIFY"
)

// ErrUnknownPermission is returned for identifiers outside the catalog.
var ErrUnknownPermission = errors.New("permission: unknown permission")

// Definition documents a catalog entry.
type Definition struct {
	ID          Permission   `json:"id"`
	Module      string       `json:"module"`
	Description string       `json:"description"`
	Implies     []Permission `json:"implies,omitempty"`
}

// catalog is kept in declaration order; seeding and listings follow it.
var catalog = []Definition{
	{ID: RolesView, Module: "roles", Description: "View roles and their permissions"},
	{ID: RolesModify, Module: "roles", Description: "Create, edit and delete roles", Implies: []Permission{RolesView}},
	{ID: UsersView, Module: "users", Description: "View users, profiles and obligations"},
	{ID: UsersModify, Module: "users", Description: "Manage users, role membership and obligations", Implies: []Permission{UsersView}},
	{ID: PosView, Module: "pos", Description: "Use the point of sale"},
	{ID: PosModify, Module: "pos", Description: "Manage products, paytypes, statuses and transactions", Implies: []Permission{PosView}},
}

var index = func() map[Permission]int {
	idx := make(map[Permission]int, len(catalog))
	for i, def := range catalog {
		idx[def.ID] = i
	}
	return idx
}()

// All returns every catalog identifier in declaration order.
func All() []Permission {
	out := make([]Permission, len(catalog))
	for i, def := range catalog {
		out[i] = def.ID
	}
	return out
}

// Definitions returns a copy of the catalog definitions in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(catalog))
	for i, def := range catalog {
		out[i] = cloneDefinition(def)
	}
	return out
}

// Get returns the definition of p.
func Get(p Permission) (Definition, bool) {
	i, ok := index[p]
	if !ok {
		return Definition{}, false
	}
	return cloneDefinition(catalog[i]), true
}

// Valid reports whether p belongs to the catalog.
func (p Permission) Valid() bool {
	_, ok := index[p]
	return ok
}

func (p Permission) String() string {
	return string(p)
}

// Parse converts raw text into a catalog permission. Matching is exact after trimming.
func Parse(raw string) (Permission, error) {
	p := Permission(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownPermission, raw)
	}
	return p, nil
}

// ParseAll parses every identifier, failing on the first unknown one. Duplicates are dropped.
func ParseAll(raw []string) ([]Permission, error) {
	out := make([]Permission, 0, len(raw))
	seen := make(map[Permission]struct{}, len(raw))
	for _, value := range raw {
		p, err := Parse(value)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Names converts permissions into their string identifiers.
func Names(perms ...Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Expand returns the given permissions plus everything they imply, ignoring
// identifiers outside the catalog.
func Expand(perms ...Permission) map[Permission]struct{} {
	granted := make(map[Permission]struct{}, len(perms))

	var visit func(Permission)
	visit = func(p Permission) {
		if _, seen := granted[p]; seen {
			return
		}
		i, ok := index[p]
		if !ok {
			return
		}
		granted[p] = struct{}{}
		for _, implied := range catalog[i].Implies {
			visit(implied)
		}
	}

	for _, p := range perms {
		visit(p)
	}
	return granted
}

func cloneDefinition(def Definition) Definition {
	if len(def.Implies) > 0 {
		def.Implies = append([]Permission(nil), def.Implies...)
	}
	return def
}
