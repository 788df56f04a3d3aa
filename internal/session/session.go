package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"advisor/internal/api"
	"advisor/internal/logging"
	"advisor/internal/models"
)

// ErrNotAuthenticated indicates an operation that needs a logged-in session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session holds the authenticated context shared by the timeline and sync
// controllers. The token lives on the API client; the profile is re-derived
// from it and never persisted. A non-nil user always implies a token.
type Session struct {
	client *api.Client
	store  *Store
	logger zerolog.Logger

	mu   sync.RWMutex
	user *models.User
}

// New creates a session bound to a client and credential store.
func New(client *api.Client, store *Store) *Session {
	return &Session{
		client: client,
		store:  store,
		logger: logging.Component("session"),
	}
}

// Client returns the API client this session authenticates.
func (s *Session) Client() *api.Client {
	return s.client
}

// Token returns the current auth token, if any.
func (s *Session) Token() string {
	return s.client.Token()
}

// User returns the current profile, or nil when logged out.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Ready reports whether the session is authenticated with a known profile.
func (s *Session) Ready() bool {
	return s.User() != nil && s.Token() != ""
}

// Restore loads the persisted token and re-derives the profile from it. A
// missing token leaves the session logged out without error. A token the
// backend rejects is dropped from the store so the next start is clean.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.LoadToken(ctx, s.client.BaseURL())
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if token == "" {
		s.logger.Debug().Msg("no stored token")
		return nil
	}

	s.client.SetToken(token)
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.logger.Warn().
				Str("token", logging.TokenPreview(token)).
				Msg("stored token rejected, clearing")
			s.client.ClearToken()
			if delErr := s.store.DeleteToken(ctx, s.client.BaseURL()); delErr != nil {
				s.logger.Warn().Err(delErr).Msg("failed to drop rejected token")
			}
			return nil
		}
		s.client.ClearToken()
		return fmt.Errorf("restore session: %w", err)
	}

	s.setUser(user)
	s.logger.Info().Str("email", user.Email).Msg("session restored")
	return nil
}

// LoginWithToken validates a token against the backend and, on success,
// persists it and adopts the profile.
func (s *Session) LoginWithToken(ctx context.Context, token string) (*models.User, error) {
	s.client.SetToken(token)
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		s.client.ClearToken()
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.store.SaveToken(ctx, s.client.BaseURL(), s.client.Token()); err != nil {
		s.logger.Warn().Err(err).Msg("token validated but not persisted")
	}

	s.setUser(user)
	s.logger.Info().Str("email", user.Email).Msg("logged in")
	return user, nil
}

// Logout clears the in-memory session and removes the persisted token.
func (s *Session) Logout(ctx context.Context) error {
	s.setUser(nil)
	s.client.ClearToken()

	if err := s.store.DeleteToken(ctx, s.client.BaseURL()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info().Msg("logged out")
	return nil
}

// Refresh re-derives the profile from the current token, picking up changes
// such as a newly linked integration. A 401 clears the in-memory session and
// reports ErrUnauthorized; the stored token is left for login to replace.
func (s *Session) Refresh(ctx context.Context) (*models.User, error) {
	if s.Token() == "" {
		return nil, ErrNotAuthenticated
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.setUser(nil)
			s.client.ClearToken()
			s.logger.Warn().Msg("token no longer valid")
			return nil, fmt.Errorf("refresh session: %w", err)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	s.setUser(user)
	return user, nil
}

func (s *Session) setUser(user *models.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}
