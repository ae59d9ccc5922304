package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadinbox/internal/models"
)

// ErrTokenExists is returned by CreateTenant on a token collision so the
// registry can retry with a fresh random value.
var ErrTokenExists = errors.New("token already exists")

// Reporting queries. All of them are scoped to a tenant in SQL; a request
// created under one tenant can never appear in another tenant's results.

// ListRequestsByDay returns the tenant's requests created on the given UTC
// calendar day, oldest first.
func (d *Database) ListRequestsByDay(ctx context.Context, tenantID int64, day time.Time) ([]models.Request, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE tenant_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`,
		tenantID, dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by day: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRequests(rows)
}

// ListRecentRequests returns the tenant's most recently created requests,
// newest first.
func (d *Database) ListRecentRequests(ctx context.Context, tenantID int64, limit int) ([]models.Request, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE tenant_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRequests(rows)
}

// SearchRequests returns the tenant's requests whose name, phone, or text
// contains the substring, case-insensitively, newest first.
func (d *Database) SearchRequests(ctx context.Context, tenantID int64, substring string, limit int) ([]models.Request, error) {
	pattern := "%" + escapeLike(strings.ToLower(substring)) + "%"

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE tenant_id = ? AND (
			LOWER(name) LIKE ? ESCAPE '\'
			OR LOWER(phone) LIKE ? ESCAPE '\'
			OR LOWER(text) LIKE ? ESCAPE '\'
		)
		ORDER BY id DESC
		LIMIT ?`,
		tenantID, pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRequests(rows)
}

// CountUndelivered reports how many requests were abandoned by the mirror
// worker. Exposed as a gauge for reconciliation.
func (d *Database) CountUndelivered(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE notify_state = ?`,
		models.NotifyStateFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count undelivered requests: %w", err)
	}
	return count, nil
}

// escapeLike neutralizes LIKE wildcards in user-supplied search input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
