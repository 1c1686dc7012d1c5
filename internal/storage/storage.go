// Package storage stores evidence files in named buckets and exposes them
// through public URLs. Two backends are provided: S3 (any S3-compatible
// endpoint) and the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/tbourn/go-bribe-backend/internal/config"
)

// ErrNoPublicURL is returned when a store cannot produce a public URL.
var ErrNoPublicURL = errors.New("no public url for object")

// ObjectStore is a bucketed blob store with public URLs.
type ObjectStore interface {
	// Upload writes body under bucket/key. size may be -1 when unknown.
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
	// PublicURL returns the URL at which bucket/key is served.
	PublicURL(bucket, key string) (string, error)
	// Delete removes bucket/key. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

// New builds the store selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ObjectKey builds the key for the index-th evidence file of a report:
// <username>/<code>/<index>-<sanitized filename>.
func ObjectKey(username, code string, index int, filename string) string {
	return fmt.Sprintf("%s/%s/%d-%s", username, code, index, SanitizeFilename(filename))
}

// maxFilenameLen caps the sanitized filename length in bytes.
const maxFilenameLen = 100

// SanitizeFilename drops any directory part and replaces characters outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLen {
		out = out[len(out)-maxFilenameLen:]
	}
	if out == "" || out == "_" {
		return "file"
	}
	return out
}

// escapeKey path-escapes each segment of key.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// joinURL appends bucket and the escaped key to base.
func joinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}
