// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"weighttrack/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates a registration for an email that already has an account.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrInvalidResetToken covers malformed, expired and already used reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrResetUnavailable indicates password reset is not configured.
	ErrResetUnavailable = errors.New("password reset is not configured")
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultResetTTL   = time.Hour
	minPasswordLen    = 8
	maxPasswordLen    = 128
	// bcrypt rejects longer input.
	maxPasswordBytes  = 72
)

// AuthService handles authentication and session management.
type AuthService struct {
	users       domain.UserRepository
	sessions    domain.SessionRepository
	mailer      domain.Mailer
	log         *zap.SugaredLogger
	sessionTTL  time.Duration
	resetTTL    time.Duration
	resetSecret []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL sets how long a login session lasts.
func WithSessionTTL(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithPasswordReset enables reset mail through m, signing tokens with secret.
func WithPasswordReset(m domain.Mailer, secret string) AuthOption {
	return func(s *AuthService) {
		s.mailer = m
		s.resetSecret = []byte(secret)
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(log *zap.SugaredLogger) AuthOption {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		log:        zap.NewNop().Sugar(),
		sessionTTL: defaultSessionTTL,
		resetTTL:   defaultResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = normaliseEmail(email)
	var failed []domain.FieldError
	if fe := validateEmail(email); fe != nil {
		failed = append(failed, *fe)
	}
	if fe := validatePassword(password); fe != nil {
		failed = append(failed, *fe)
	}
	if len(failed) > 0 {
		return nil, &domain.ValidationError{Fields: failed}
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, email, string(hash))
	if errors.Is(err, domain.ErrUserExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	s.log.Infow("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and creates a session.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normaliseEmail(email))
	if err != nil || user == nil {
		return "", ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.startSession(ctx, user.ID, userAgent, ip)
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession checks if a session token is valid and matches the user agent.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

// ValidateForwardAuth validates a request from a forward-auth proxy.
// It checks for the Remote-User header the proxy sets and provisions the
// account on first sight.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, errors.New("no remote user header")
	}
	return s.findOrProvision(ctx, normaliseEmail(remoteUser))
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
func (s *AuthService) LoginWithUser(ctx context.Context, email, userAgent, ip string) (string, error) {
	user, err := s.findOrProvision(ctx, normaliseEmail(email))
	if err != nil {
		return "", err
	}
	return s.startSession(ctx, user.ID, userAgent, ip)
}

// findOrProvision returns the user for email, creating a password-less
// account when none exists.
func (s *AuthService) findOrProvision(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user, err = s.users.Create(ctx, email, "")
	if errors.Is(err, domain.ErrUserExists) {
		// Lost a race with a concurrent first login.
		user, err = s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	s.log.Infow("user provisioned from sso", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, userID int64, userAgent, ip string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.sessions.Create(ctx, userID, token, userAgent, ip, expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

type resetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// RequestPasswordReset mails a reset link to email when an account exists.
// The outcome is the same whether or not it does.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, baseURL string) error {
	if s.mailer == nil || len(s.resetSecret) == 0 {
		return ErrResetUnavailable
	}
	user, err := s.users.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		s.log.Debugw("password reset for unknown email")
		return nil
	}

	now := time.Now()
	claims := resetClaims{
		Fingerprint: fingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.resetTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.resetSecret)
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}

	link := strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	s.log.Infow("password reset mail sent", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password for the token's user and ends all of
// that user's sessions. A token stops working once the password changes.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(s.resetSecret) == 0 {
		return ErrResetUnavailable
	}
	if fe := validatePassword(newPassword); fe != nil {
		return &domain.ValidationError{Fields: []domain.FieldError{*fe}}
	}

	var claims resetClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.resetSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ErrInvalidResetToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return ErrInvalidResetToken
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil || !ConstantTimeCompare(claims.Fingerprint, fingerprint(user.PasswordHash)) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := s.sessions.DeleteForUser(ctx, user.ID); err != nil {
		return err
	}
	s.log.Infow("password reset", "user_id", user.ID)
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) *domain.FieldError {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return &domain.FieldError{Field: "email", Message: "email must be a valid email address"}
	}
	return nil
}

func validatePassword(pw string) *domain.FieldError {
	n := len([]rune(pw))
	if n < minPasswordLen || n > maxPasswordLen {
		return &domain.FieldError{Field: "password", Message: fmt.Sprintf("password must be between %d and %d characters", minPasswordLen, maxPasswordLen)}
	}
	if len(pw) > maxPasswordBytes {
		return &domain.FieldError{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)}
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return &domain.FieldError{Field: "password", Message: "password must contain an uppercase letter, a lowercase letter and a digit"}
	}
	return nil
}

// fingerprint ties a reset token to the password hash it was issued for.
func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
