// Package user holds the back-office staff accounts. Authentication itself
// lives outside this module; only the account record and its lookups are
// modelled here.
package user

import (
	"net/mail"
	"strings"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// Role is what a staff member is allowed to do.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleMechanic  Role = "mechanic"
	RoleAttendant Role = "attendant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMechanic, RoleAttendant:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidRole Error = "invalid role"
	ErrEmptyName   Error = "name is required"
	ErrMissingHash Error = "password hash is required"
	ErrEmailTaken  Error = "email already registered"
)

// ---------------------------------------------------------------------------
// User aggregate root
// ---------------------------------------------------------------------------

// User is a staff account. The password arrives already hashed.
type User struct {
	domain.AggregateRoot `json:"-"`

	ID           domain.EntityID `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         Role            `json:"role"`
	PasswordHash string          `json:"password_hash"`
	Active       bool            `json:"active"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`
}

// New creates an active user. Email is stored lower-case.
func New(name, email string, role Role, passwordHash string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if passwordHash == "" {
		return nil, ErrMissingHash
	}
	u := &User{
		ID:           domain.NewID(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(addr.Address),
		Role:         role,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    domain.Now(),
		UpdatedAt:    domain.Now(),
	}
	u.RecordEvent(domain.NewEvent(domain.EventUserCreated, u.ID, map[string]string{"role": role.String()}))
	return u, nil
}

func (u *User) Identity() domain.EntityID { return u.ID }
func (u *User) IsActive() bool            { return u.Active }

func (u *User) Deactivate() {
	u.Active = false
	u.UpdatedAt = domain.Now()
	u.RecordEvent(domain.NewEvent(domain.EventUserDeactivated, u.ID, nil))
}

// ChangeRole moves the user to another role.
func (u *User) ChangeRole(r Role) error {
	if !r.Valid() {
		return ErrInvalidRole
	}
	u.Role = r
	u.UpdatedAt = domain.Now()
	return nil
}

// Repository is the persistence contract for users.
type Repository = domain.Repository[User]

// ---------------------------------------------------------------------------
// Specifications
// ---------------------------------------------------------------------------

// ByEmail matches the account registered under email.
type ByEmail struct{ query.Base[User] }

func NewByEmail(email string) *ByEmail {
	s := &ByEmail{}
	s.Where(func(u query.Expr) query.Expr {
		return query.Eq(query.Field(u, "Email"), query.Const(strings.ToLower(strings.TrimSpace(email))))
	})
	return s
}

// ByRole matches accounts with any of roles.
type ByRole struct{ query.Base[User] }

func NewByRole(roles ...Role) *ByRole {
	s := &ByRole{}
	s.Where(func(u query.Expr) query.Expr {
		return query.In(query.Field(u, "Role"), query.Const(roles))
	})
	return s
}

// Active matches accounts that can still sign in.
type Active struct{ query.Base[User] }

func NewActive() *Active {
	s := &Active{}
	s.Where(func(u query.Expr) query.Expr {
		return query.Eq(query.Field(u, "Active"), query.Const(true))
	})
	return s
}
