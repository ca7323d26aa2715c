// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

var (
	ErrMissingFields      = errors.New("name, email, and password are required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownEmail       = errors.New("no account for that email")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

const resetTokenTTL = time.Hour

// UserStore defines the storage the auth service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetUserByResetToken(ctx context.Context, token string) (store.User, error)
	ResetUserPassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	store UserStore
}

func NewService(st UserStore) *Service {
	return &Service{store: st}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Register creates a new user account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < 8 {
		return store.User{}, ErrPasswordTooShort
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("user"),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair. The same error covers an
// unknown email and a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset mints a one-hour reset token for the account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (store.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, "", ErrUnknownEmail
	}
	if err != nil {
		return store.User{}, "", fmt.Errorf("lookup user: %w", err)
	}

	token := util.NewToken(32)
	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.store.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return store.User{}, "", fmt.Errorf("save reset token: %w", err)
	}
	return user, token, nil
}

// ResetPassword sets a new password for the account the token belongs to and
// consumes the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	user, err := s.store.GetUserByResetToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.ResetUserPassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
