package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/repo"
	"github.com/tbourn/go-bribe-backend/internal/trackid"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, username string) {
	t.Helper()
	if _, err := repo.CreateUser(context.Background(), db, id, username); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func seedReport(t *testing.T, db *gorm.DB, code, userID string, amount int64) {
	t.Helper()
	r := &domain.BribeReport{
		BribeID:      code,
		UserID:       userID,
		OfficialName: domain.UnknownOfficial,
		Department:   "Police",
		Amount:       amount,
		State:        "Kerala",
		District:     "Kochi",
		Description:  "desc " + code,
	}
	if err := repo.CreateReport(context.Background(), db, r); err != nil {
		t.Fatalf("seed report %s: %v", code, err)
	}
}

// repoShim adapts the repo package functions to the service interfaces.
type repoShim struct{}

func (repoShim) GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUserByID(ctx, db, id)
}
func (repoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, u string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, u)
}
func (repoShim) CreateUser(ctx context.Context, db *gorm.DB, id, u string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, id, u)
}
func (repoShim) UsernameTaken(ctx context.Context, db *gorm.DB, u string) (bool, error) {
	return repo.UsernameTaken(ctx, db, u)
}
func (repoShim) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	return repo.CodeExists(ctx, db, code)
}
func (repoShim) CreateReport(ctx context.Context, db *gorm.DB, r *domain.BribeReport) error {
	return repo.CreateReport(ctx, db, r)
}
func (repoShim) CountReports(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountReports(ctx, db)
}
func (repoShim) ListReportsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BribeReport, error) {
	return repo.ListReportsPage(ctx, db, offset, limit)
}
func (repoShim) GetReportByCode(ctx context.Context, db *gorm.DB, code string) (*domain.BribeReport, error) {
	return repo.GetReportByCode(ctx, db, code)
}
func (repoShim) ListReportsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.BribeReport, error) {
	return repo.ListReportsByUser(ctx, db, userID)
}
func (repoShim) ReportsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.ReportsStats(ctx, db)
}
func (repoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, key, now)
}
func (repoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, key, bribeID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, key, bribeID, status, ttl)
}

// fixedCodes always derives the same suffix ("123456") for a username.
func fixedCodes(maxAttempts int) *trackid.Generator {
	return &trackid.Generator{
		MaxAttempts: maxAttempts,
		NewSeed:     func() uuid.UUID { return uuid.MustParse("12345678-1234-1234-1234-123456789012") },
		Perm: func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}
}

// ----- fake object store -----

type storedObject struct {
	bucket, key, contentType string
	body                     []byte
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	uploads []string
	deleted []string
	failOn  int // 1-based upload call that fails; 0 never
	noURL   bool
	calls   int
	baseURL string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]storedObject{}, baseURL: "https://cdn.test"}
}

func (f *fakeStore) Upload(ctx context.Context, bucket, key, ct string, body io.Reader, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == f.calls {
		return errors.New("store unavailable")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = storedObject{bucket: bucket, key: key, contentType: ct, body: b}
	f.uploads = append(f.uploads, bucket+"/"+key)
	return nil
}

func (f *fakeStore) PublicURL(bucket, key string) (string, error) {
	if f.noURL {
		return "", errors.New("no public url")
	}
	return f.baseURL + "/" + bucket + "/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	f.deleted = append(f.deleted, bucket+"/"+key)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func file(name, ct string, data []byte) EvidenceFile {
	return EvidenceFile{
		Filename:    name,
		ContentType: ct,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
