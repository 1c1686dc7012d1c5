// Package services – ReportService
//
// This file implements ReportService, which owns the creation and public
// listing of bribe reports. Creation runs in one database transaction: the
// owner is loaded, a tracking code is generated against the store, evidence is
// uploaded under the code, and the row is inserted. A unique violation at
// insert or commit time means a concurrent request took the same code; the
// uploaded batch is removed and the whole attempt is rerun with a fresh code,
// a bounded number of times.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user id and tracking code where applicable.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/repo"
	"github.com/tbourn/go-bribe-backend/internal/trackid"
)

// PageSize is the fixed size of a public listing page.
const PageSize = 50

// ReportRepo defines the repository contract required by ReportService.
type ReportRepo interface {
	// GetUserByID loads the report owner.
	GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	// CodeExists is the generator's pre-check.
	CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	// CreateReport inserts a report; a taken code yields repo.ErrDuplicate.
	CreateReport(ctx context.Context, db *gorm.DB, r *domain.BribeReport) error

	CountReports(ctx context.Context, db *gorm.DB) (int64, error)
	ListReportsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BribeReport, error)
	ReportsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)

	GetIdempotency(ctx context.Context, db *gorm.DB, userID, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, key, bribeID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// ReportService creates and lists reports.
type ReportService struct {
	DB       *gorm.DB
	Repo     ReportRepo
	Codes    *trackid.Generator
	Evidence *EvidencePipeline

	// CommitAttempts bounds whole-transaction reruns after a commit-time
	// collision. Defaults to 3.
	CommitAttempts int
	// RetryDelay is the pause between reruns.
	RetryDelay time.Duration
	// IdempotencyTTL is how long Remember keeps a key. Defaults to 24h.
	IdempotencyTTL time.Duration
}

func (s *ReportService) commitAttempts() uint {
	if s.CommitAttempts <= 0 {
		return 3
	}
	return uint(s.CommitAttempts)
}

func (s *ReportService) codes() *trackid.Generator {
	if s.Codes == nil {
		return trackid.New(0)
	}
	return s.Codes
}

// Create validates in and persists it for userID, returning the stored
// report with its tracking code.
func (s *ReportService) Create(ctx context.Context, userID string, in ReportInput) (*domain.BribeReport, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("evidence.files", len(in.Evidence)),
		),
	)
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	date, err := ParseIncidentDate(in.Date)
	if err != nil {
		return nil, err
	}

	lg := zerolog.Ctx(ctx)
	var out *domain.BribeReport
	err = retry.Do(
		func() error {
			r, err := s.createOnce(ctx, userID, in, date)
			if err != nil {
				return err
			}
			out = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.commitAttempts()),
		retry.Delay(s.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, repo.ErrDuplicate) }),
		retry.OnRetry(func(n uint, err error) {
			trackingCollisions.WithLabelValues("commit").Inc()
			lg.Warn().Err(err).Uint("attempt", n+1).Msg("tracking code taken at commit, retrying")
		}),
	)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrTrackingCode
		}
		return nil, err
	}

	reportsCreated.Inc()
	span.SetAttributes(attribute.String("bribe_id", out.BribeID))
	return out, nil
}

// createOnce runs one transactional attempt. Any evidence it uploaded is
// removed when the attempt does not commit.
func (s *ReportService) createOnce(ctx context.Context, userID string, in ReportInput, date *time.Time) (*domain.BribeReport, error) {
	var (
		uploaded []UploadedObject
		report   *domain.BribeReport
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.Repo.GetUserByID(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		code, err := s.codes().Generate(ctx, owner.Username, func(ctx context.Context, code string) (bool, error) {
			taken, err := s.Repo.CodeExists(ctx, tx, code)
			if taken {
				trackingCollisions.WithLabelValues("precheck").Inc()
			}
			return taken, err
		})
		if err != nil {
			if errors.Is(err, trackid.ErrExhausted) {
				return ErrTrackingCode
			}
			return err
		}

		if s.Evidence != nil && len(in.Evidence) > 0 {
			uploaded, err = s.Evidence.Upload(ctx, owner.Username, code, in.Evidence)
			if err != nil {
				return err
			}
		}

		r := &domain.BribeReport{
			BribeID:      code,
			UserID:       owner.ID,
			OfficialName: in.OfficialName,
			Department:   in.Department,
			Amount:       in.Amount,
			State:        in.State,
			District:     in.District,
			Description:  in.Description,
			IncidentDate: date,
			EvidenceURLs: URLs(uploaded),
		}
		if in.PinCode != "" {
			pin := in.PinCode
			r.PinCode = &pin
		}
		if err := s.Repo.CreateReport(ctx, tx, r); err != nil {
			return err
		}
		r.User = *owner
		report = r
		return nil
	})
	if err != nil {
		if s.Evidence != nil {
			s.Evidence.Cleanup(ctx, uploaded)
		}
		if repo.IsDuplicate(err) {
			return nil, repo.ErrDuplicate
		}
		return nil, err
	}
	return report, nil
}

// ListPage returns one page (1-indexed) of reports ordered by amount, largest
// first, along with the total number of reports.
func (s *ReportService) ListPage(ctx context.Context, page int) ([]domain.BribeReport, int64, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(attribute.Int("page", page)),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	total, err := s.Repo.CountReports(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BribeReport{}, 0, nil
	}
	items, err := s.Repo.ListReportsPage(ctx, s.DB, (page-1)*PageSize, PageSize)
	return items, total, err
}

// Stats returns the report count and latest update time, for ETags.
func (s *ReportService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.ReportsStats(ctx, s.DB)
}

// Replay returns the tracking code recorded for (userID, key), if any.
func (s *ReportService) Replay(ctx context.Context, userID, key string) (string, bool, error) {
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, userID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.BribeID, true, nil
}

// Remember records bribeID under (userID, key). A concurrent record for the
// same key is not an error.
func (s *ReportService) Remember(ctx context.Context, userID, key, bribeID string, status int) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := s.Repo.CreateIdempotency(ctx, s.DB, userID, key, bribeID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
