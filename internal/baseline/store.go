package baseline

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrMismatch is returned by Store.Check when a baseline differs from its
// reference.
var ErrMismatch = errors.New("baseline differs from reference")

// Key addresses one baseline file.
type Key struct {
	Tool     string
	Project  string
	Phase    string
	Scenario string
	Ext      string
}

// Path returns <tool>/<project>/<phase-slug>/<scenario-slug>.<ext>.
func (k Key) Path() string {
	ext := strings.TrimPrefix(k.Ext, ".")
	if ext == "" {
		ext = "txt"
	}
	return path.Join(Slug(k.Tool), Slug(k.Project), Slug(k.Phase), Slug(k.Scenario)+"."+ext)
}

// Slug lower-cases s and collapses every run of characters other than
// letters, digits, dots and underscores into a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// MismatchError carries the diff between a reference baseline and the
// freshly rendered one.
type MismatchError struct {
	Path string
	Diff string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %v\n%s", e.Path, ErrMismatch, e.Diff)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Store keeps baselines under a root directory of an afero filesystem.
//
// Check compares against the reference baseline. In accept mode, or when no
// reference exists yet, it writes the new content instead.
type Store struct {
	fs     afero.Fs
	root   string
	accept bool
}

// NewStore returns a store rooted at root.
func NewStore(fs afero.Fs, root string, accept bool) *Store {
	return &Store{fs: fs, root: root, accept: accept}
}

func (s *Store) file(k Key) string {
	return path.Join(s.root, k.Path())
}

// Write stores content under k. Empty content is stored as NoChanges.
func (s *Store) Write(k Key, content string) error {
	if content == "" {
		content = NoChanges
	}
	p := s.file(k)
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write baseline %s: %w", p, err)
	}
	return nil
}

// Read returns the stored baseline for k.
func (s *Store) Read(k Key) (string, error) {
	data, err := afero.ReadFile(s.fs, s.file(k))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Check compares content with the reference for k. It returns a
// *MismatchError when they differ.
func (s *Store) Check(k Key, content string) error {
	if content == "" {
		content = NoChanges
	}
	if s.accept {
		return s.Write(k, content)
	}
	ref, err := s.Read(k)
	if errors.Is(err, os.ErrNotExist) {
		return s.Write(k, content)
	}
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	if ref == content {
		return nil
	}
	return &MismatchError{Path: s.file(k), Diff: UnifiedDiff(k.Path(), ref, content)}
}
