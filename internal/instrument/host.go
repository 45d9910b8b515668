package instrument

import (
	"io/fs"
	"time"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// snapshotHost adapts a vfs snapshot to api.Host.
type snapshotHost struct {
	fs    *vfs.FS
	clock vfs.Clock
}

// NewHost exposes f as a build host. A nil clock uses the snapshot's own.
func NewHost(f *vfs.FS, clock vfs.Clock) api.Host {
	if clock == nil {
		clock = f.Clock()
	}
	return &snapshotHost{fs: f, clock: clock}
}

func (h *snapshotHost) ReadFile(path string) ([]byte, error) { return h.fs.ReadFile(path) }

func (h *snapshotHost) WriteFile(path string, data []byte) error {
	return h.fs.WriteFile(path, data)
}

func (h *snapshotHost) Stat(path string) (fs.FileInfo, error) {
	info, err := h.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (h *snapshotHost) FileExists(path string) bool          { return h.fs.IsFile(path) }
func (h *snapshotHost) MkdirAll(path string) error           { return h.fs.MkdirAll(path) }
func (h *snapshotHost) Remove(path string) error             { return h.fs.Remove(path) }
func (h *snapshotHost) Touch(path string, t time.Time) error { return h.fs.Touch(path, t) }
func (h *snapshotHost) Now() time.Time                       { return h.clock.Now() }

// recordingHost counts every read, found or not, and passes everything else
// through.
type recordingHost struct {
	api.Host
	rec *Recorder
}

// Wrap returns a host whose ReadFile records every read attempt in rec. A
// read of a missing file still counts.
func Wrap(host api.Host, rec *Recorder) api.Host {
	return &recordingHost{Host: host, rec: rec}
}

func (h *recordingHost) ReadFile(path string) ([]byte, error) {
	h.rec.Record(path)
	return h.Host.ReadFile(path)
}

var (
	_ api.Host = (*snapshotHost)(nil)
	_ api.Host = (*recordingHost)(nil)
)
