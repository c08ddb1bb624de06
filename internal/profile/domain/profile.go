package domain

import (
	"errors"
	"time"
)

// Role is the application-level role stored on a user profile. The set is
// closed; anything else resolves to RoleUnknown at read time.
type Role string

const (
	RoleFarmer     Role = "Farmer"
	RoleBuyer      Role = "Buyer"
	RoleMSME       Role = "MSME"
	RoleLogistics  Role = "Logistics"
	RoleFieldAgent Role = "FieldAgent"
	RoleUnknown    Role = ""
)

// ParseRole returns the role for s, or RoleUnknown when s is not in the set.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleFarmer, RoleBuyer, RoleMSME, RoleLogistics, RoleFieldAgent:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// SignupMethod records which credential path created the profile.
type SignupMethod string

const (
	SignupEmail SignupMethod = "email"
	SignupPhone SignupMethod = "phone"
)

// Profile is the role record keyed by principal id. Exactly one profile
// exists per principal; the role is immutable after creation and no update
// path exists in the auth flow.
type Profile struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Role         Role
	SignupMethod SignupMethod
	CreatedAt    time.Time
}

// Validate validates the profile for persistence.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if p.Email == "" && p.Phone == "" {
		return errors.New("profile needs an email or a phone")
	}
	if ParseRole(string(p.Role)) == RoleUnknown {
		return errors.New("unrecognized role")
	}
	if p.SignupMethod != SignupEmail && p.SignupMethod != SignupPhone {
		return errors.New("unrecognized signup method")
	}
	return nil
}
