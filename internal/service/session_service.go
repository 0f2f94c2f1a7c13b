package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"image-drop/internal/domain"
	"image-drop/internal/repository"
)

// ErrUnauthenticated is returned when a token does not map to a live session and user.
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionService issues, resolves and revokes login sessions.
type SessionService interface {
	// Authenticate verifies credentials and opens a new session. Existing
	// sessions of the same user stay valid.
	Authenticate(ctx context.Context, username, password string) (*domain.Session, error)
	// Resolve returns the user behind token, re-read from the store on every call.
	Resolve(ctx context.Context, token string) (*domain.User, error)
	// Invalidate revokes token. Unknown or already revoked tokens are a no-op.
	Invalidate(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	users    UserService
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(users UserService, sessions repository.SessionRepository, ttl time.Duration) SessionService {
	return &sessionService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *sessionService) Authenticate(ctx context.Context, username, password string) (*domain.Session, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			return nil, fmt.Errorf("drop expired session: %w", err)
		}
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return user, nil
}

func (s *sessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *sessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}
