package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentic-research/buildverify/internal/vfs"
)

// EditKind names a scripted filesystem mutation.
type EditKind string

const (
	EditWrite   EditKind = "write"
	EditReplace EditKind = "replace"
	EditPrepend EditKind = "prepend"
	EditAppend  EditKind = "append"
	EditTouch   EditKind = "touch"
	EditDelete  EditKind = "delete"
	EditMkdir   EditKind = "mkdir"
)

// Edit is one mutation applied to a phase's shadow before the build.
type Edit struct {
	Kind EditKind
	Path string
	Text string // content for write, prepend, append; replacement for replace
	Old  string // text replaced by replace
}

// Write replaces the content of path, creating the file if needed.
func Write(path, text string) Edit { return Edit{Kind: EditWrite, Path: path, Text: text} }

// Replace substitutes the first occurrence of old in path with text.
func Replace(path, old, text string) Edit {
	return Edit{Kind: EditReplace, Path: path, Old: old, Text: text}
}

// Prepend inserts text at the start of path.
func Prepend(path, text string) Edit { return Edit{Kind: EditPrepend, Path: path, Text: text} }

// Append adds text at the end of path.
func Append(path, text string) Edit { return Edit{Kind: EditAppend, Path: path, Text: text} }

// Touch bumps the modification time of path without changing its content.
func Touch(path string) Edit { return Edit{Kind: EditTouch, Path: path} }

// Delete removes path and, for a directory, everything under it.
func Delete(path string) Edit { return Edit{Kind: EditDelete, Path: path} }

// Mkdir creates path and any missing parents.
func Mkdir(path string) Edit { return Edit{Kind: EditMkdir, Path: path} }

func (e Edit) String() string {
	switch e.Kind {
	case EditReplace:
		return fmt.Sprintf("replace %q with %q in %s", e.Old, e.Text, e.Path)
	case EditWrite, EditPrepend, EditAppend:
		return fmt.Sprintf("%s %q to %s", e.Kind, e.Text, e.Path)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Path)
	}
}

// Validate checks that the edit is well formed without touching a snapshot.
func (e Edit) Validate() error {
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("%s edit without a path", e.Kind)
	}
	switch e.Kind {
	case EditWrite, EditPrepend, EditAppend, EditTouch, EditDelete, EditMkdir:
		return nil
	case EditReplace:
		if e.Old == "" {
			return fmt.Errorf("replace edit on %s without text to replace", e.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown edit kind %q", e.Kind)
	}
}

// Apply performs the edit on f. Touch uses now as the new modification time;
// every other edit is stamped by f's clock.
func (e Edit) Apply(f *vfs.FS, now time.Time) error {
	switch e.Kind {
	case EditWrite:
		return f.WriteFile(e.Path, []byte(e.Text))
	case EditTouch:
		return f.Touch(e.Path, now)
	case EditDelete:
		return f.Remove(e.Path)
	case EditMkdir:
		return f.MkdirAll(e.Path)
	}

	data, err := f.ReadFile(e.Path)
	if err != nil {
		return err
	}
	content := string(data)
	switch e.Kind {
	case EditReplace:
		if !strings.Contains(content, e.Old) {
			return fmt.Errorf("%s: %q: %w", vfs.Clean(e.Path), e.Old, ErrEditNoMatch)
		}
		content = strings.Replace(content, e.Old, e.Text, 1)
	case EditPrepend:
		content = e.Text + content
	case EditAppend:
		content += e.Text
	default:
		return fmt.Errorf("unknown edit kind %q", e.Kind)
	}
	return f.WriteFile(e.Path, []byte(content))
}
