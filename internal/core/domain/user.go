package domain

import "time"

// Role identifies which portal a user belongs to.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User models a registered portal account.
// IsVerified flips false→true once, when the registration code is consumed.
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	Profile    Profile    `json:"profile"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// Identity is the resolved view of a session's owner handed to callers.
type Identity struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Role       Role    `json:"role"`
	Profile    Profile `json:"profile"`
	IsVerified bool    `json:"is_verified"`
}

// IdentityOf projects a user onto its public identity.
func IdentityOf(u *User) *Identity {
	return &Identity{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		Profile:    u.Profile,
		IsVerified: u.IsVerified,
	}
}
