package dependency

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

const kindFile = "file"

// File is changed when the modification time of Path differs from the one
// seen at write time. A missing file is a state too: appearing or
// disappearing counts as a change.
type File struct {
	Path    string `msgpack:"p"`
	ModTime int64  `msgpack:"m"` // unix nanos; 0 when the file was missing
}

func NewFile(path string) *File { return &File{Path: path} }

func (*File) Kind() string { return kindFile }

func (f *File) Evaluate(_ context.Context, _ Env) (Dependency, error) {
	m, err := modTime(f.Path)
	if err != nil {
		return nil, err
	}
	return &File{Path: f.Path, ModTime: m}, nil
}

func (f *File) Changed(_ context.Context, _ Env) (bool, error) {
	m, err := modTime(f.Path)
	if err != nil {
		return true, err
	}
	return m != f.ModTime, nil
}

func modTime(path string) (int64, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.ModTime().UnixNano(), nil
}
