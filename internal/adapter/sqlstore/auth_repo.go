package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weighttrack/internal/domain"
)

// UserRepo implements user persistence on DB.
type UserRepo struct {
	db *DB
}

// NewUserRepo wraps a DB as a UserRepository.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

// GetByEmail retrieves a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email)
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id)
}

func (r *UserRepo) get(ctx context.Context, q string, arg any) (*domain.User, error) {
	var u userRow
	err := r.db.sql.GetContext(ctx, &u, r.db.sql.Rebind(q), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u.toDomain(), nil
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	var u userRow
	err := r.db.sql.GetContext(ctx, &u,
		r.db.sql.Rebind("INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?) RETURNING id, email, password_hash, created_at"),
		email, passwordHash, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, domain.ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u.toDomain(), nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.sql.ExecContext(ctx, r.db.sql.Rebind("UPDATE users SET password_hash = ? WHERE id = ?"), passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update password: user %d not found", id)
	}
	return nil
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.sql.ExecContext(ctx,
		r.db.sql.Rebind("INSERT INTO sessions (user_id, token, user_agent, ip, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		userID, token, userAgent, ip, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByToken retrieves an unexpired session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s sessionRow
	err := r.db.sql.GetContext(ctx, &s,
		r.db.sql.Rebind("SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = ?"),
		token,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if time.Now().After(s.ExpiresAt.Time) {
		return nil, nil
	}
	return &domain.Session{
		Token:     s.Token,
		UserID:    s.UserID,
		UserAgent: s.UserAgent,
		IP:        s.IP,
		ExpiresAt: s.ExpiresAt.UTC(),
		CreatedAt: s.CreatedAt.UTC(),
	}, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, r.db.sql.Rebind("DELETE FROM sessions WHERE token = ?"), token)
	return err
}

// DeleteForUser deletes every session of the user.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.db.sql.ExecContext(ctx, r.db.sql.Rebind("DELETE FROM sessions WHERE user_id = ?"), userID)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, r.db.sql.Rebind("DELETE FROM sessions WHERE expires_at < ?"), time.Now().UTC())
	return err
}
