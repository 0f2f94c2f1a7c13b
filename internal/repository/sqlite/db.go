package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"image-drop/internal/repository"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serialises writers; sqlite handles the rest
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

// Repositories groups the stores backed by one database handle.
type Repositories struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
}

// NewRepositories builds the repositories and creates their tables.
func NewRepositories(ctx context.Context, db *sql.DB) (*Repositories, error) {
	repos := &Repositories{
		Users:    NewUserRepository(db),
		Sessions: NewSessionRepository(db),
	}
	if err := repos.Users.Init(ctx); err != nil {
		return nil, fmt.Errorf("init user repository: %w", err)
	}
	if err := repos.Sessions.Init(ctx); err != nil {
		return nil, fmt.Errorf("init session repository: %w", err)
	}
	return repos, nil
}
