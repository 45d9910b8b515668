package nfsmount

import (
	"bytes"
	"os"
)

// snapshotFile is an open, read-only handle on a frozen file. Content is
// captured at open time, so later shadows never show through.
type snapshotFile struct {
	*bytes.Reader
	name string
}

func newSnapshotFile(name string, data []byte) *snapshotFile {
	return &snapshotFile{Reader: bytes.NewReader(data), name: name}
}

func (f *snapshotFile) Name() string { return f.name }

func (f *snapshotFile) Write([]byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.name, Err: errReadOnly}
}

func (f *snapshotFile) Truncate(int64) error {
	return &os.PathError{Op: "truncate", Path: f.name, Err: errReadOnly}
}

func (f *snapshotFile) Lock() error   { return nil }
func (f *snapshotFile) Unlock() error { return nil }
func (f *snapshotFile) Close() error  { return nil }
