package vfs

import (
	"path"
	"strings"
)

// Clean normalises p to a rooted, slash-separated, cleaned path.
// Backslashes are treated as separators.
func Clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean("/" + p)
}

// Split returns the components of a cleaned path. The root has none.
func Split(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// Join joins path elements and cleans the result.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Dir returns all but the last element of p.
func Dir(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Ext returns the file name extension of p.
func Ext(p string) string {
	return path.Ext(p)
}

// HasPrefix reports whether p equals root or lies beneath it.
func HasPrefix(p, root string, ignoreCase bool) bool {
	p, root = Clean(p), Clean(root)
	if ignoreCase {
		p, root = strings.ToLower(p), strings.ToLower(root)
	}
	if root == "/" || p == root {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// Rel returns target relative to the directory base, both cleaned.
func Rel(base, target string) string {
	from := Split(base)
	to := Split(target)
	i := 0
	for i < len(from) && i < len(to) && from[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(from)-i+len(to)-i)
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
