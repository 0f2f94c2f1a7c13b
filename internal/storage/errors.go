package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// ErrStorage matches every *Error.
var ErrStorage = errors.New("storage error")

// Code classifies a storage failure for logs. Callers only branch on ErrStorage.
type Code string

const (
	CodeDiskFull         Code = "disk_full"
	CodePermissionDenied Code = "permission_denied"
	CodeCollision        Code = "collision"
	CodeInvalidName      Code = "invalid_name"
	CodeIO               Code = "io"
)

// Error describes a failed storage operation.
type Error struct {
	Op   string
	Name string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s %q: %s", e.Op, e.Name, e.Code)
	}
	return fmt.Sprintf("storage %s %q: %s: %v", e.Op, e.Name, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrStorage }

func newError(op, name string, err error) *Error {
	return &Error{Op: op, Name: name, Code: classify(err), Err: err}
}

func classify(err error) Code {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return CodeDiskFull
	case errors.Is(err, fs.ErrPermission):
		return CodePermissionDenied
	default:
		return CodeIO
	}
}
