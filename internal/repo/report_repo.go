// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// BribeReport model.
//
// Functions:
//
//   - CreateReport(ctx, db, r) -> error
//     Inserts a report; a taken tracking code yields ErrDuplicate.
//
//   - CodeExists(ctx, db, code) -> (bool, error)
//     Pre-check used by the tracking code generator.
//
//   - CountReports / ListReportsPage
//     Public listing ordered by amount, largest first.
//
//   - GetReportByCode / ListReportsByUser
//     Tracking lookups; the owner is preloaded for display.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-bribe-backend/internal/domain"
)

// listOrder sorts by amount with the tracking code as a stable tie-breaker so
// pages never overlap.
const listOrder = "bribe_amt DESC, bribe_id ASC"

// CreateReport inserts r. CreatedAt/UpdatedAt are set to UTC when zero.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.BribeReport) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return translate(db.WithContext(ctx).Omit("User").Create(r).Error)
}

// CodeExists reports whether a report already uses code.
func CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.BribeReport{}).
		Where("bribe_id = ?", code).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// CountReports returns the total number of reports.
func CountReports(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.BribeReport{}).Count(&n).Error
	return n, err
}

// ListReportsPage returns a window of reports ordered by amount descending.
func ListReportsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BribeReport, error) {
	var out []domain.BribeReport
	err := db.WithContext(ctx).
		Order(listOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetReportByCode fetches a single report with its owner.
func GetReportByCode(ctx context.Context, db *gorm.DB, code string) (*domain.BribeReport, error) {
	var r domain.BribeReport
	err := db.WithContext(ctx).
		Preload("User").
		Where("bribe_id = ?", code).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReportsByUser returns every report owned by userID, largest amount first.
func ListReportsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.BribeReport, error) {
	var out []domain.BribeReport
	err := db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order(listOrder).
		Find(&out).Error
	return out, err
}
