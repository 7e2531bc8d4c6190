package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Local serves files below a root directory. Keys that would escape the
// root are rejected.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, Object, error) {
	if !filepath.IsLocal(key) {
		return nil, Object{}, ErrInvalidKey
	}

	root, err := os.OpenRoot(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrObjectNotFound
		}
		return nil, Object{}, err
	}
	defer root.Close()

	f, err := root.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrObjectNotFound
		}
		return nil, Object{}, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Object{}, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, Object{}, ErrObjectNotFound
	}

	return f, Object{Key: key, Size: info.Size(), ContentType: contentTypeFor(key), ModTime: info.ModTime()}, nil
}

// contentTypeFor knows .zip itself since Go's builtin table lacks it.
func contentTypeFor(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ext == ".zip" {
		return "application/zip"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
