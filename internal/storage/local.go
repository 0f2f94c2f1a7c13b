package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	tmpDirName      = ".tmp"
	maxNameAttempts = 1000
)

// Local is a Gateway over one flat directory. Colliding names are
// disambiguated with a numeric suffix before the extension (cat.png,
// cat_1.png, cat_2.png, ...); nothing is ever overwritten.
type Local struct {
	dir string
}

// NewLocal creates dir if needed and returns a gateway rooted at it.
func NewLocal(dir string) (*Local, error) {
	clean := filepath.Clean(dir)
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", clean, err)
	}
	return &Local{dir: clean}, nil
}

// Dir returns the root directory.
func (l *Local) Dir() string {
	return l.dir
}

// Store writes r under name, or under the first free disambiguated variant,
// and returns the name actually used. name must already be sanitized.
//
// The payload is written and fsynced to a temp file first, then hard-linked
// onto the first free name. A link fails if the name exists, so concurrent
// writers never share a file and the final name only ever appears with its
// full content.
func (l *Local) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "store", Name: name, Code: CodeIO, Err: err}
	}
	if name == "" || Sanitize(name) != name {
		return "", &Error{Op: "store", Name: name, Code: CodeInvalidName}
	}

	tmpPath, err := l.writeTemp(r)
	if err != nil {
		return "", newError("store", name, err)
	}
	defer os.Remove(tmpPath)

	return l.claim(tmpPath, name)
}

func (l *Local) writeTemp(r io.Reader) (string, error) {
	tmpDir := filepath.Join(l.dir, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	f, err := os.CreateTemp(tmpDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmpPath, nil
}

func (l *Local) claim(tmpPath, name string) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		candidate := candidateName(name, i)
		err := os.Link(tmpPath, filepath.Join(l.dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", newError("claim", candidate, err)
	}
	return "", &Error{Op: "claim", Name: name, Code: CodeCollision,
		Err: fmt.Errorf("no free name after %d attempts", maxNameAttempts)}
}

func candidateName(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := fmt.Sprintf("_%d", attempt)
	if over := len(base) + len(suffix) + len(ext) - maxNameLength; over > 0 && over < len(base) {
		base = strings.TrimRight(base[:len(base)-over], "._")
	}
	return base + suffix + ext
}

// List returns the regular files directly inside the directory in the order
// the filesystem enumerates them. Callers that need a stable order must sort.
func (l *Local) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "list", Code: CodeIO, Err: err}
	}

	dir, err := os.Open(l.dir)
	if err != nil {
		return nil, newError("list", l.dir, err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, newError("list", l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Fetch returns the bytes of a stored file. The requested name must survive
// Sanitize unchanged and resolve to a regular file directly in the directory.
func (l *Local) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "fetch", Name: name, Code: CodeIO, Err: err}
	}

	safe := Sanitize(name)
	if safe == "" || safe != name {
		return nil, ErrNotFound
	}

	path := filepath.Join(l.dir, safe)
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, newError("fetch", safe, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, newError("fetch", safe, err)
	}
	return data, nil
}
