package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested name is not a stored regular file.
var ErrNotFound = errors.New("file not found")

// Gateway persists uploads in a flat directory and serves them back by name.
type Gateway interface {
	Store(ctx context.Context, name string, r io.Reader) (string, error)
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Mirror copies stored files to a secondary location.
type Mirror interface {
	Mirror(ctx context.Context, name string, r io.Reader) (string, error)
}

var (
	_ Gateway = (*Local)(nil)
	_ Mirror  = (*S3Mirror)(nil)
)
