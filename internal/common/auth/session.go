package auth

import (
	"context"
	"sync"
	"time"

	"parent-portal/internal/common/errors"
	"parent-portal/internal/models"
)

// TokenSource hands out a bearer token for an outgoing call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for an already issued access token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.NewSessionExpiredError("no access token")
	}
	return string(t), nil
}

type refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error)
	Logout(ctx context.Context, refreshToken string) error
}

// PasswordSession keeps a signed-in parent's tokens fresh.
type PasswordSession struct {
	mu     sync.Mutex
	client refresher
	tokens *models.TokenSet
	leeway time.Duration
}

// NewPasswordSession signs in and returns a session.
func NewPasswordSession(ctx context.Context, client *KeycloakClient, username, password string, leeway time.Duration) (*PasswordSession, error) {
	tokens, err := client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return ResumeSession(client, tokens, leeway), nil
}

// ResumeSession wraps tokens obtained earlier.
func ResumeSession(client refresher, tokens *models.TokenSet, leeway time.Duration) *PasswordSession {
	return &PasswordSession{client: client, tokens: tokens, leeway: leeway}
}

// Token returns a valid access token, refreshing it when it is about to expire.
func (s *PasswordSession) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tokens.IsExpired(s.leeway) {
		return s.tokens.AccessToken, nil
	}
	if !s.tokens.CanRefresh() {
		return "", errors.NewSessionExpiredError("access and refresh tokens expired")
	}
	fresh, err := s.client.Refresh(ctx, s.tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	s.tokens = fresh
	return fresh.AccessToken, nil
}

// Tokens returns a copy of the current token set.
func (s *PasswordSession) Tokens() models.TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return models.TokenSet{}
	}
	return *s.tokens
}

// Logout ends the session at the identity provider.
func (s *PasswordSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	tokens := s.tokens
	s.tokens = nil
	s.mu.Unlock()

	if tokens == nil || tokens.RefreshToken == "" {
		return nil
	}
	return s.client.Logout(ctx, tokens.RefreshToken)
}
