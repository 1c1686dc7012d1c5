// Package services – EvidencePipeline
//
// This file uploads the evidence attached to a report. Files are routed to a
// bucket by MIME type (images and PDFs; anything else is skipped) and stored
// under <username>/<tracking code>/. A batch is all-or-nothing: on the first
// failure every object already stored for the batch is deleted and
// ErrEvidenceUpload is returned.
package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-bribe-backend/internal/storage"
)

// sniffLen is how many bytes http.DetectContentType considers.
const sniffLen = 512

// EvidenceFile is one uploaded file as received from the client.
type EvidenceFile struct {
	Filename    string
	ContentType string
	Size        int64
	// Open returns a fresh reader each call, so a batch can be retried.
	Open func() (io.ReadCloser, error)
}

// UploadedObject records where a file was stored.
type UploadedObject struct {
	Bucket string
	Key    string
	URL    string
}

// EvidencePipeline stores evidence files in an ObjectStore.
type EvidencePipeline struct {
	Store           storage.ObjectStore
	ImagesBucket    string
	DocumentsBucket string
	// Timeout bounds each store call; 30s when zero.
	Timeout time.Duration
}

func (p *EvidencePipeline) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 30 * time.Second
	}
	return p.Timeout
}

// BucketFor maps a content type to its bucket. ok is false for types that
// are not accepted as evidence.
func (p *EvidencePipeline) BucketFor(contentType string) (bucket string, ok bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return p.ImagesBucket, true
	case mt == "application/pdf":
		return p.DocumentsBucket, true
	default:
		return "", false
	}
}

// Upload stores files in input order and returns what was stored. Files with
// an empty name, zero size or an unsupported type are skipped.
func (p *EvidencePipeline) Upload(ctx context.Context, username, code string, files []EvidenceFile) ([]UploadedObject, error) {
	tr := otel.Tracer("services/EvidencePipeline")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("bribe_id", code),
			attribute.Int("files", len(files)),
		),
	)
	defer span.End()
	lg := zerolog.Ctx(ctx)

	done := make([]UploadedObject, 0, len(files))
	for i, f := range files {
		if f.Filename == "" || f.Size == 0 || f.Open == nil {
			continue
		}
		obj, stored, err := p.uploadOne(ctx, username, code, i, f)
		if err != nil {
			if stored.Key != "" {
				done = append(done, stored)
			}
			evidenceUploadFailures.Inc()
			span.RecordError(err)
			lg.Warn().Err(err).Str("bribe_id", code).Str("file", f.Filename).Msg("evidence upload failed, cleaning up batch")
			p.Cleanup(ctx, done)
			return nil, fmt.Errorf("%w: %s: %w", ErrEvidenceUpload, f.Filename, err)
		}
		if obj == nil {
			lg.Debug().Str("file", f.Filename).Msg("skipping evidence with unsupported type")
			continue
		}
		done = append(done, *obj)
	}
	span.SetAttributes(attribute.Int("uploaded", len(done)))
	return done, nil
}

// uploadOne returns (nil, zero, nil) when the file is skipped. On failure the
// second result names the key that may have been partially written.
func (p *EvidencePipeline) uploadOne(ctx context.Context, username, code string, index int, f EvidenceFile) (*UploadedObject, UploadedObject, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, UploadedObject{}, err
	}
	defer rc.Close()

	body := bufio.NewReaderSize(rc, sniffLen)
	ct := strings.TrimSpace(f.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		head, _ := body.Peek(sniffLen)
		ct = http.DetectContentType(head)
	}
	bucket, ok := p.BucketFor(ct)
	if !ok {
		return nil, UploadedObject{}, nil
	}

	key := storage.ObjectKey(username, code, index, f.Filename)
	attempted := UploadedObject{Bucket: bucket, Key: key}

	uctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()
	if err := p.Store.Upload(uctx, bucket, key, ct, body, f.Size); err != nil {
		return nil, attempted, err
	}
	url, err := p.Store.PublicURL(bucket, key)
	if err != nil {
		return nil, attempted, err
	}
	attempted.URL = url
	return &attempted, attempted, nil
}

// Cleanup deletes objs, best effort. It runs even when ctx is already
// cancelled.
func (p *EvidencePipeline) Cleanup(ctx context.Context, objs []UploadedObject) {
	if len(objs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	lg := zerolog.Ctx(ctx)
	for _, o := range objs {
		dctx, cancel := context.WithTimeout(ctx, p.timeout())
		if err := p.Store.Delete(dctx, o.Bucket, o.Key); err != nil {
			lg.Warn().Err(err).Str("bucket", o.Bucket).Str("key", o.Key).Msg("evidence cleanup failed")
		}
		cancel()
	}
}

// URLs lists the public URLs of objs in order.
func URLs(objs []UploadedObject) []string {
	return lo.Map(objs, func(o UploadedObject, _ int) string { return o.URL })
}
