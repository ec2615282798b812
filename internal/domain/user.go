package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. Ban flags are read per operation, not
// cached at connection time, so a ban applied mid-session takes effect
// on the next action.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Avatar        string    `json:"avatar,omitempty"`
	Role          string    `json:"role"`
	IsBanned      bool      `json:"isBanned"`
	BanReason     string    `json:"banReason,omitempty"`
	IsChatBanned  bool      `json:"isChatBanned"`
	ChatBanReason string    `json:"chatBanReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
