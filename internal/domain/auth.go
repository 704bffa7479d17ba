// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUserExists is returned by UserRepository.Create for a taken email.
var ErrUserExists = errors.New("user already exists")

// User represents an authenticated user in the system.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents an active user session.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
// Lookups return nil, nil when the user does not exist.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) error
}

// Mailer is the port for outbound account mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}
