// Package api defines the contract between the verification engine and the
// incremental build tool under test.
package api

import (
	"context"
	"io/fs"
	"time"
)

// Host is the filesystem a build runs against. Paths are rooted and
// slash-separated. A missing path makes ReadFile and Stat return an error
// matching fs.ErrNotExist.
type Host interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Stat(path string) (fs.FileInfo, error)
	FileExists(path string) bool
	MkdirAll(path string) error
	Remove(path string) error
	// Touch sets the modification time of an existing file.
	Touch(path string, t time.Time) error
	// Now is the host's notion of the current time. Builds never consult
	// the wall clock.
	Now() time.Time
}

// BuildOptions mirror the switches of a build invocation.
type BuildOptions struct {
	// DryRun reports what would be built without writing anything.
	DryRun bool `json:"dry_run,omitempty" hcl:"dry_run,optional"`
	// Force rebuilds every project regardless of up-to-date status.
	Force bool `json:"force,omitempty" hcl:"force,optional"`
	// Verbose emits status diagnostics for every decision.
	Verbose bool `json:"verbose,omitempty" hcl:"verbose,optional"`
}

// Builder builds every project reachable from roots. Each root names a
// project configuration file (e.g. /src/tsconfig.json).
//
// Diagnostics go to sink in the order they are produced. The returned error
// is reserved for failures of the builder itself; a project with errors is
// reported through diagnostics.
type Builder interface {
	BuildAll(ctx context.Context, host Host, roots []string, opts BuildOptions, sink Sink) error
}
