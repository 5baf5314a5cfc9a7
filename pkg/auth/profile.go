package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrIncompleteProfile is returned when a profile payload lacks its identifier
var ErrIncompleteProfile = errors.New("incomplete profile")

// FlexString decodes a JSON string or number into its string form.
// The profile endpoint sends numeric primary keys.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Profile is the raw payload returned by GET /profile/me/
type Profile struct {
	ID           FlexString `json:"id"`
	Username     string     `json:"username,omitempty"`
	Email        string     `json:"email"`
	Role         string     `json:"role,omitempty"`
	Permissions  []string   `json:"permissions,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Organization FlexString `json:"organization,omitempty"`
	Ward         string     `json:"ward,omitempty"`
	Constituency string     `json:"constituency,omitempty"`
}

// User normalises the profile into the internal user model.
//
// The display name falls back to the local part of the email, a missing role
// becomes DefaultRole and an unrecognised one RoleUnknown. Missing permissions
// yield an empty set.
func (p *Profile) User() (*User, error) {
	if p.ID == "" {
		return nil, ErrIncompleteProfile
	}

	role := DefaultRole
	if p.Role != "" {
		// ParseRole returns RoleUnknown alongside the error
		role, _ = ParseRole(p.Role)
	}

	name := p.Username
	if name == "" {
		name = EmailLocalPart(p.Email)
	}

	return &User{
		ID:             string(p.ID),
		Name:           name,
		Email:          p.Email,
		Role:           role,
		Permissions:    NewPermissionSet(p.Permissions...),
		Avatar:         p.AvatarURL,
		Ward:           p.Ward,
		Constituency:   p.Constituency,
		IsSuperAdmin:   role == RoleSuperAdmin,
		OrganizationID: string(p.Organization),
		Status:         StatusActive,
	}, nil
}

// EmailLocalPart returns the portion of an email address before the '@'
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
