package service

import (
	"context"
	"fmt"

	"leadinbox/internal/database"
	"leadinbox/internal/errors"
	"leadinbox/internal/metrics"
	"leadinbox/internal/models"

	"github.com/sirupsen/logrus"
)

// Lifecycle applies status transitions. Every transition is a conditional
// write keyed on the current status, so two operators racing on the same
// request cannot double-apply.
type Lifecycle struct {
	db       *database.Database
	notifier Waker
	logger   *logrus.Logger
}

func NewLifecycle(db *database.Database, notifier Waker, logger *logrus.Logger) *Lifecycle {
	return &Lifecycle{db: db, notifier: notifier, logger: logger}
}

// Apply moves a tenant's request to the target status. Re-applying the
// status a request already has succeeds without touching the row. An
// illegal move returns an INVALID_TRANSITION error naming both statuses.
func (l *Lifecycle) Apply(ctx context.Context, tenantID, requestID int64, target models.Status) (*models.Request, error) {
	if !target.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("unknown status %q", target))
	}

	for {
		req, err := l.db.GetRequest(ctx, tenantID, requestID)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to load request")
		}
		if req == nil {
			return nil, errors.New(errors.ErrCodeNotFound,
				fmt.Sprintf("request %d not found", requestID))
		}

		if req.Status == target {
			return req, nil
		}

		if !req.Status.CanTransitionTo(target) {
			return nil, errors.New(errors.ErrCodeInvalidTransition,
				fmt.Sprintf("cannot move request %d from %s to %s", requestID, req.Status, target))
		}

		applied, err := l.db.UpdateRequestStatus(ctx, requestID, req.Status, target)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to update status")
		}
		if !applied {
			// Lost a race; re-read and re-judge against the winner's status.
			continue
		}

		metrics.IncrementCounter("transitions_total", map[string]string{
			"from": string(req.Status),
			"to":   string(target),
		}, "Applied status transitions")

		l.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"tenant_id":  tenantID,
			"from":       req.Status,
			"to":         target,
		}).Info("Request status changed")

		l.notifier.Wake()
		return l.reload(ctx, tenantID, requestID)
	}
}

// ApplyExpected is Apply for button presses, which carry the status the
// operator was looking at. When the request has since moved on, the press
// is stale: nothing is applied and the current request comes back so the
// caller can refresh the message.
func (l *Lifecycle) ApplyExpected(ctx context.Context, tenantID, requestID int64, expected, target models.Status) (*models.Request, bool, error) {
	req, err := l.db.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to load request")
	}
	if req == nil {
		return nil, false, errors.New(errors.ErrCodeNotFound,
			fmt.Sprintf("request %d not found", requestID))
	}

	if req.Status != expected {
		metrics.IncrementCounter("stale_actions_total", nil, "Button presses raced by another transition")
		return req, false, nil
	}

	updated, err := l.Apply(ctx, tenantID, requestID, target)
	if err != nil {
		return nil, false, err
	}
	return updated, expected != target, nil
}

func (l *Lifecycle) reload(ctx context.Context, tenantID, requestID int64) (*models.Request, error) {
	req, err := l.db.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to reload request")
	}
	if req == nil {
		return nil, errors.New(errors.ErrCodeNotFound,
			fmt.Sprintf("request %d not found", requestID))
	}
	return req, nil
}
