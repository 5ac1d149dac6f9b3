// Package auth registers accounts and resolves credentials and bearer tokens
// to users. Passwords are optional; accounts created without one log in by
// email alone.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"stockscope/internal/domain"
	"stockscope/internal/store"
)

var (
	ErrMissingFields = errors.New("email and nickname required")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrUnauthorized  = errors.New("unauthorized")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password longer than 72 bytes")
)

// Service implements registration, login, and token checks over a UserStore.
type Service struct {
	users store.UserStore
	cost  int
}

// NewService returns a Service using bcrypt's default cost.
func NewService(users store.UserStore) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// Register creates an account. The returned user's ID is its token.
func (s *Service) Register(ctx context.Context, email, nickname, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	nickname = strings.TrimSpace(nickname)
	if email == "" || nickname == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}

	u := &domain.User{Email: email, Nickname: nickname}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// Login checks the credentials. Accounts without a password accept any.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return u, nil
	}
	if password == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrWrongPassword
	}
	return u, nil
}

// Authenticate resolves a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	u, err := s.users.UserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return u, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value. Anything else yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
