package vfs

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound indicates the path does not resolve to any node.
	ErrNotFound = errors.New("path not found")

	// ErrNotAFile indicates the operation needs a file but found a directory.
	ErrNotAFile = errors.New("not a file")

	// ErrNotADir indicates a path component that must be a directory is a file.
	ErrNotADir = errors.New("not a directory")

	// ErrReadOnly indicates a mutation was attempted on a frozen snapshot.
	ErrReadOnly = errors.New("snapshot is read-only")

	// ErrExists indicates the path already exists.
	ErrExists = errors.New("path already exists")

	// ErrInvalidPath indicates a path that cannot be operated on, such as the root.
	ErrInvalidPath = errors.New("invalid path")
)

// Error wraps a filesystem error with the operation and path that produced it.
type Error struct {
	Op   string // Operation that failed (e.g. "read", "write")
	Path string // Normalised path
	Err  error  // One of the sentinel errors above
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers written against io/fs match missing paths with
// fs.ErrNotExist.
func (e *Error) Is(target error) bool {
	return target == fs.ErrNotExist && e.Err == ErrNotFound
}

func newError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// Operation names used in errors.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpTouch  = "touch"
	OpRemove = "remove"
	OpMkdir  = "mkdir"
	OpStat   = "stat"
	OpList   = "readdir"
	OpApply  = "apply"
)
