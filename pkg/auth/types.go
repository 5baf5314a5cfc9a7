package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRole is returned by ParseRole for role strings outside the known set
var ErrUnknownRole = errors.New("unknown role")

// Role represents the server-assigned role of a user
type Role string

const (
	RoleSuperAdmin Role = "superadmin" // Implicitly holds every permission
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleModerator  Role = "moderator"
	RoleAnalyst    Role = "analyst"
	RoleViewer     Role = "viewer"
	RoleUser       Role = "user"      // Field worker
	RoleVolunteer  Role = "volunteer" // Field worker
	RoleUnknown    Role = "unknown"   // Role string the client does not recognise
)

// DefaultRole is assigned when the profile payload carries no role
const DefaultRole = RoleUser

var knownRoles = map[Role]struct{}{
	RoleSuperAdmin: {},
	RoleAdmin:      {},
	RoleEditor:     {},
	RoleModerator:  {},
	RoleAnalyst:    {},
	RoleViewer:     {},
	RoleUser:       {},
	RoleVolunteer:  {},
}

// ParseRole converts a server role string into a Role. Matching is exact:
// case or whitespace variants of a known role are RoleUnknown.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := knownRoles[role]; !ok {
		return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return role, nil
}

// IsWorker reports whether the role is one of the non-administrative field roles
func (r Role) IsWorker() bool {
	return r == RoleVolunteer || r == RoleUser
}

// IsSuperAdmin reports whether the role grants every permission
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// Permission represents a named capability granted by the server
type Permission string

// PermissionAll grants every permission when present in a user's permission set
const PermissionAll Permission = "*"

// PermissionSet is an unordered set of permissions
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from raw permission strings, ignoring blanks
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[Permission(p)] = struct{}{}
	}
	return set
}

// Has reports plain membership, without wildcard expansion
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// GrantsAll reports whether the set holds the wildcard marker
func (s PermissionSet) GrantsAll() bool {
	return s.Has(PermissionAll)
}

// Sorted returns the permissions in lexical order
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Status represents the account status of a materialised user
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// User is the identity materialised from the profile endpoint
type User struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Role           Role          `json:"role"`
	Permissions    PermissionSet `json:"-"`
	Avatar         string        `json:"avatar,omitempty"`
	Ward           string        `json:"ward,omitempty"`
	Constituency   string        `json:"constituency,omitempty"`
	IsSuperAdmin   bool          `json:"is_super_admin"`
	OrganizationID string        `json:"organization_id,omitempty"`
	Status         Status        `json:"status"`
}

// HasPermission checks whether the user holds a permission.
// Super admins and holders of the wildcard marker hold every permission.
func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	if u.IsSuperAdmin {
		return true
	}
	if u.Permissions.GrantsAll() {
		return true
	}
	return u.Permissions.Has(p)
}

// IsWorker reports whether the user holds a field-worker role
func (u *User) IsWorker() bool {
	if u == nil {
		return false
	}
	return u.Role.IsWorker()
}

// Clone returns a deep copy so callers cannot mutate session state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Permissions = make(PermissionSet, len(u.Permissions))
	for p := range u.Permissions {
		c.Permissions[p] = struct{}{}
	}
	return &c
}

// TokenPair is the access/refresh credential pair issued by the auth service
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Authenticated reports whether the pair can authenticate requests.
// A missing access token means unauthenticated regardless of the refresh token.
func (tp TokenPair) Authenticated() bool {
	return tp.Access != ""
}
