package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under Root/<bucket>/<key>.
type LocalStore struct {
	Root          string
	PublicBaseURL string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage path is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{Root: root, PublicBaseURL: publicBaseURL}, nil
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, bucket, filepath.FromSlash(key))
	if !strings.HasPrefix(p, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("object key escapes storage root: %s/%s", bucket, key)
	}
	return p, nil
}

// Upload writes the object to disk. A partially written file is removed.
func (s *LocalStore) Upload(ctx context.Context, bucket, key, _ string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return err
	}
	return f.Close()
}

// PublicURL requires PublicBaseURL; files are expected to be served from it.
func (s *LocalStore) PublicURL(bucket, key string) (string, error) {
	if s.PublicBaseURL == "" {
		return "", ErrNoPublicURL
	}
	return joinURL(s.PublicBaseURL, bucket, key), nil
}

// Delete removes the object file.
func (s *LocalStore) Delete(_ context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
