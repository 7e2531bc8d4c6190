// Package storage serves downloadable files from local disk or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tfinance/tfinance-api/internal/config"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

// Object describes an opened file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Storage opens objects by key. Callers close the returned reader.
type Storage interface {
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
}

// New builds the backend selected by files.backend.
func New(ctx context.Context, cfg config.FilesConfig) (Storage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.Dir), nil
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown file backend %q", cfg.Backend)
	}
}
