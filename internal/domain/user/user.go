// Package user defines user accounts and their storage contract.
package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Role is the authorization role of a user account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role value.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Sentinel errors for user operations.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email is already registered")
)

// User is a registered account. PasswordHash is the bcrypt hash of the
// password; the plaintext is never stored.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Address      string
	PhoneNumber  string
	Role         Role
	CreatedAt    time.Time
}

// Repository provides persistence for user accounts.
type Repository interface {
	// Create persists a new user. Returns ErrEmailTaken when the email is
	// already registered.
	Create(ctx context.Context, u *User) error
	// GetByID returns a user by identifier, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail returns a user by email address, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	// Search returns users whose name contains the query,
	// case-insensitively.
	Search(ctx context.Context, name string) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}
