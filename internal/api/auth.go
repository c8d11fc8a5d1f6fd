package api

import (
	"context"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// AuthService wraps the credential-issuing endpoints. Both endpoints are
// public: the session client sends them unauthenticated when no token is
// stored.
type AuthService struct {
	s *session.Client
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Login exchanges email/password for a token pair.
func (a *AuthService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := a.s.Post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password}, &pair)
	return pair, err
}

// Register creates an account and returns its first token pair; the
// created account is immediately authenticated.
func (a *AuthService) Register(ctx context.Context, email, password, displayName string) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := a.s.Post(ctx, "/api/auth/register", registerRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}, &pair)
	return pair, err
}
