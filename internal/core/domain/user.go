package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleViewer      Role = "viewer"
	RoleStudent     Role = "student"
	RoleSchoolAdmin Role = "school_admin"
	RoleSystemAdmin Role = "system_admin"
	RoleScoutAdmin  Role = "scout_admin"
	RoleXenScout    Role = "xen_scout"
)

// Roles lists every role in a stable order.
var Roles = []Role{
	RoleViewer,
	RoleStudent,
	RoleSchoolAdmin,
	RoleSystemAdmin,
	RoleScoutAdmin,
	RoleXenScout,
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleStudent, RoleSchoolAdmin, RoleSystemAdmin, RoleScoutAdmin, RoleXenScout:
		return true
	}
	return false
}

// IsScout reports whether the role belongs to the XEN Watch review staff.
func (r Role) IsScout() bool {
	return r == RoleScoutAdmin || r == RoleXenScout
}

// ProfileScope says where a role keeps its profile and which user fields are
// needed to find or recreate it.
type ProfileScope int

const (
	ScopeUnknown ProfileScope = iota
	// ScopeDisplayName profiles are matched by the user's display name.
	ScopeDisplayName
	// ScopeSchool profiles are matched inside the user's school and cannot be
	// re-derived without one.
	ScopeSchool
	// ScopeDirectory profiles live in the shared admin directory keyed by email.
	// They are provisioned out-of-band and never created here.
	ScopeDirectory
)

func (s ProfileScope) String() string {
	switch s {
	case ScopeDisplayName:
		return "display_name"
	case ScopeSchool:
		return "school"
	case ScopeDirectory:
		return "directory"
	}
	return "unknown"
}

func (r Role) ProfileScope() ProfileScope {
	switch r {
	case RoleViewer, RoleSystemAdmin:
		return ScopeDisplayName
	case RoleStudent, RoleSchoolAdmin:
		return ScopeSchool
	case RoleScoutAdmin, RoleXenScout:
		return ScopeDirectory
	}
	return ScopeUnknown
}

// RequiresProfile reports whether linkedId must point at a row in a dedicated
// role table.
func (r Role) RequiresProfile() bool {
	s := r.ProfileScope()
	return s == ScopeDisplayName || s == ScopeSchool
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	LinkedID  *string   `json:"linked_id,omitempty"`
	SchoolID  *string   `json:"school_id,omitempty"`
	IsFrozen  bool      `json:"is_frozen"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) HasSchool() bool {
	return u.SchoolID != nil && *u.SchoolID != ""
}

func (u *User) HasLinkedID() bool {
	return u.LinkedID != nil && *u.LinkedID != ""
}
