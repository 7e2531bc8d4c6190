package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfinance/tfinance-api/internal/config"
)

func TestLocalOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "T-Finance.zip"), []byte("PK\x03\x04zip"), 0o600))

	l := NewLocal(dir)
	rc, obj, err := l.Open(context.Background(), "T-Finance.zip")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04zip", string(data))
	assert.Equal(t, int64(7), obj.Size)
	assert.Equal(t, "application/zip", obj.ContentType)
}

func TestLocalOpenMissing(t *testing.T) {
	l := NewLocal(t.TempDir())
	_, _, err := l.Open(context.Background(), "T-Finance.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, _, err = NewLocal(filepath.Join(t.TempDir(), "absent")).Open(context.Background(), "T-Finance.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "files")
	require.NoError(t, os.Mkdir(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret.txt"), []byte("x"), 0o600))

	l := NewLocal(dir)
	for _, key := range []string{"../secret.txt", "/etc/passwd", ""} {
		_, _, err := l.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func newS3Test(t *testing.T, h http.HandlerFunc) Storage {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), config.FilesConfig{
		Backend:     "s3",
		S3Bucket:    "releases",
		S3Region:    "us-east-1",
		S3Endpoint:  srv.URL,
		S3AccessKey: "minio",
		S3SecretKey: "minio-secret",
	})
	require.NoError(t, err)
	return s
}

func TestS3Open(t *testing.T) {
	s := newS3Test(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/releases/T-Finance.zip", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Credential=minio/")

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", "5")
		w.Header().Set("Last-Modified", "Sat, 01 Mar 2025 10:00:00 GMT")
		_, _ = w.Write([]byte("PKzip"))
	})

	rc, obj, err := s.Open(context.Background(), "T-Finance.zip")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "PKzip", string(data))
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "application/zip", obj.ContentType)
	assert.Equal(t, 2025, obj.ModTime.Year())
}

func TestS3OpenMissing(t *testing.T) {
	s := newS3Test(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>T-Finance.zip</Key></Error>`))
	})

	_, _, err := s.Open(context.Background(), "T-Finance.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.FilesConfig{Backend: "ftp"})
	assert.Error(t, err)
}
