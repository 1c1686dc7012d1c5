// Package services – TrackService
//
// This file implements the tracking flow: reports are looked up by username
// and/or tracking code, and a result can be parked in the one-time result
// cache so a redirecting client can read it back exactly once.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-bribe-backend/internal/cache"
	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/repo"
)

// TrackRepo defines the repository contract required by TrackService.
type TrackRepo interface {
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
	GetReportByCode(ctx context.Context, db *gorm.DB, code string) (*domain.BribeReport, error)
	ListReportsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.BribeReport, error)
}

// TrackService finds reports for reporters.
type TrackService struct {
	DB      *gorm.DB
	Repo    TrackRepo
	Results cache.TrackResults
}

// Find returns the reports matching username and/or code.
//
// With both given, the code's report comes first when it belongs to username,
// followed by the user's other reports; a code owned by someone else is not
// shown. With only a username, all of that user's reports are returned; with
// only a code, that report. ErrNoReports is returned when nothing matches.
func (s *TrackService) Find(ctx context.Context, username, code string) ([]domain.TrackedReport, error) {
	tr := otel.Tracer("services/TrackService")
	ctx, span := tr.Start(ctx, "Find",
		trace.WithAttributes(
			attribute.Bool("by_username", username != ""),
			attribute.Bool("by_code", code != ""),
		),
	)
	defer span.End()

	username = strings.TrimSpace(username)
	code = strings.TrimSpace(code)
	if username == "" && code == "" {
		return nil, ErrNoReports
	}

	var byCode *domain.BribeReport
	if code != "" {
		r, err := s.Repo.GetReportByCode(ctx, s.DB, code)
		switch {
		case err == nil:
			byCode = r
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}

	if username == "" {
		if byCode == nil {
			return nil, ErrNoReports
		}
		return []domain.TrackedReport{domain.NewTrackedReport(*byCode)}, nil
	}

	owner, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, err
	}
	mine, err := s.Repo.ListReportsByUser(ctx, s.DB, owner.ID)
	if err != nil {
		return nil, err
	}

	var out []domain.BribeReport
	if byCode != nil && byCode.UserID == owner.ID {
		out = append(out, *byCode)
		mine = lo.Filter(mine, func(r domain.BribeReport, _ int) bool { return r.BribeID != byCode.BribeID })
	}
	out = append(out, mine...)
	if len(out) == 0 {
		return nil, ErrNoReports
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return domain.NewTrackedReports(out), nil
}

// Stash parks reports in the result cache and returns the one-time token.
func (s *TrackService) Stash(ctx context.Context, reports []domain.TrackedReport) (string, error) {
	return s.Results.Put(ctx, reports)
}

// Redeem returns the reports stored under token and forgets them. An unknown
// or expired token yields an empty list.
func (s *TrackService) Redeem(ctx context.Context, token string) ([]domain.TrackedReport, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return []domain.TrackedReport{}, nil
	}
	got, ok, err := s.Results.Take(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.TrackedReport{}, nil
	}
	return got, nil
}
