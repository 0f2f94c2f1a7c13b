package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"image-drop/internal/repository/sqlite"
)

func newTestRepos(t *testing.T) *sqlite.Repositories {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos, err := sqlite.NewRepositories(context.Background(), db)
	require.NoError(t, err)
	return repos
}

func newTestServices(t *testing.T, ttl time.Duration) (*userService, *sessionService, *sqlite.Repositories) {
	t.Helper()
	repos := newTestRepos(t)
	users := newUserServiceWithCost(repos.Users, bcrypt.MinCost)
	sessions := NewSessionService(users, repos.Sessions, ttl).(*sessionService)
	return users, sessions, repos
}
