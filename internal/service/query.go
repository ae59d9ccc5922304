package service

import (
	"context"
	"time"

	"leadinbox/internal/constants"
	"leadinbox/internal/database"
	"leadinbox/internal/errors"
	"leadinbox/internal/models"
	"leadinbox/internal/validation"
)

// QueryService answers the reporting commands. All results are scoped to
// one tenant; days are UTC calendar days.
type QueryService struct {
	db *database.Database
}

func NewQueryService(db *database.Database) *QueryService {
	return &QueryService{db: db}
}

// ByDay returns the tenant's requests created on the given UTC day, oldest
// first.
func (q *QueryService) ByDay(ctx context.Context, tenantID int64, day time.Time) ([]models.Request, error) {
	requests, err := q.db.ListRequestsByDay(ctx, tenantID, day.UTC())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to list requests by day")
	}
	return requests, nil
}

// Today is ByDay for the current UTC day.
func (q *QueryService) Today(ctx context.Context, tenantID int64) ([]models.Request, error) {
	return q.ByDay(ctx, tenantID, time.Now().UTC())
}

// Last returns the tenant's most recent requests, newest first. The limit
// is clamped to [1, 100] with a default of 20.
func (q *QueryService) Last(ctx context.Context, tenantID int64, limit int) ([]models.Request, error) {
	limit = validation.ClampLimit(limit, constants.DefaultLastLimit, constants.MaxLastLimit)
	requests, err := q.db.ListRecentRequests(ctx, tenantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to list recent requests")
	}
	return requests, nil
}

// Find returns the tenant's requests whose name, phone, or text contains
// the substring, case-insensitively, newest first, capped at 50 results.
func (q *QueryService) Find(ctx context.Context, tenantID int64, substring string) ([]models.Request, error) {
	if err := validation.ValidateSearchQuery(substring); err != nil {
		return nil, err
	}
	requests, err := q.db.SearchRequests(ctx, tenantID, substring, constants.MaxFindResults)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to search requests")
	}
	return requests, nil
}
