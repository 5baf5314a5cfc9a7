// Package auth defines the identity model shared by the session packages.
//
// # Overview
//
// The auth service is the source of truth for who the user is. This package
// holds the client-side shapes of that truth: the access/refresh TokenPair,
// the materialised User, and the closed Role and Permission vocabularies used
// by authorization checks.
//
// # Roles
//
// Server role strings are parsed at the boundary into a closed enumeration:
//
//	RoleSuperAdmin - implicitly holds every permission
//	RoleAdmin, RoleEditor, RoleModerator, RoleAnalyst, RoleViewer
//	RoleUser, RoleVolunteer - field workers
//	RoleUnknown - anything else the server sends
//
// # Permissions
//
// Permissions are opaque strings granted by the server. PermissionAll ("*")
// is the grants-all sentinel:
//
//	user.HasPermission("campaigns:write")
//
// # Profiles
//
// The profile endpoint payload is normalised into a User:
//
//	var p auth.Profile
//	json.NewDecoder(body).Decode(&p)
//	user, err := p.User()
package auth
