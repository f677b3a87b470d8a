package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/dkeye/Colla/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLen = 6

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too short")
)

type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// Service backs signup and login with the user store.
type Service struct {
	Users  store.Store
	Tokens *Tokens
	Cost   int
}

func NewService(users store.Store, tokens *Tokens) *Service {
	return &Service{Users: users, Tokens: tokens, Cost: bcrypt.DefaultCost}
}

func (s *Service) Signup(ctx context.Context, username, password string) (Session, error) {
	name, err := domain.NormalizeUsername(username)
	if err != nil {
		return Session{}, err
	}
	if len(password) < MinPasswordLen {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.Users.CreateUser(ctx, name, string(hash))
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	name, err := domain.NormalizeUsername(username)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := s.Users.UserByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) issue(u store.User) (Session, error) {
	tok, err := s.Tokens.Sign(u.ID, u.Username)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, Username: u.Username, UserID: u.ID}, nil
}
