// Package cache holds track results between POST /track_bribe and the
// redirected GET /track_report. Entries are addressed by an unguessable
// token, expire after a TTL and can be read only once.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/tbourn/go-bribe-backend/internal/config"
	"github.com/tbourn/go-bribe-backend/internal/domain"
)

// TrackResults is a one-time result store.
type TrackResults interface {
	// Put stores reports and returns the token that retrieves them.
	Put(ctx context.Context, reports []domain.TrackedReport) (string, error)
	// Take returns and removes the entry for token. ok is false when the
	// token is unknown or expired.
	Take(ctx context.Context, token string) (reports []domain.TrackedReport, ok bool, err error)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (TrackResults, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown result cache backend: %s", cfg.Backend)
	}
}

// Memory is an in-process TrackResults backed by go-cache.
type Memory struct {
	// mu makes Get+Delete in Take atomic.
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory returns a Memory whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memory{c: gocache.New(ttl, 2*ttl), ttl: ttl}
}

// Put stores a copy of reports.
func (m *Memory) Put(_ context.Context, reports []domain.TrackedReport) (string, error) {
	token := uuid.NewString()
	cp := make([]domain.TrackedReport, len(reports))
	copy(cp, reports)
	m.c.Set(token, cp, m.ttl)
	return token, nil
}

// Take returns and evicts the entry.
func (m *Memory) Take(_ context.Context, token string) ([]domain.TrackedReport, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(token)
	if !ok {
		return nil, false, nil
	}
	m.c.Delete(token)
	reports, _ := v.([]domain.TrackedReport)
	return reports, true, nil
}
