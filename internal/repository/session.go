package repository

import (
	"context"
	"time"

	"image-drop/internal/domain"
)

// SessionRepository stores login sessions keyed by token.
type SessionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	// Delete removes the session; deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
