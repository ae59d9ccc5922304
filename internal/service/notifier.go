package service

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"leadinbox/internal/database"
	"leadinbox/internal/errors"
	"leadinbox/internal/metrics"
	"leadinbox/internal/models"
	"leadinbox/internal/render"
	"leadinbox/internal/retry"

	"github.com/sirupsen/logrus"
)

// ChatSender is the delivery capability the notifier needs from the chat
// transport.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, actions []models.Action) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string, actions []models.Action) error
}

// Notifier keeps each request's chat message converged with its stored
// state. It runs as a single background worker: writes wake it up, and a
// poll ticker sweeps up anything a crash or a failed send left behind.
//
// Delivery never feeds back into request state. A request whose message
// could not be delivered is still fully operable.
type Notifier struct {
	db      *database.Database
	sender  ChatSender
	config  models.NotifyConfig
	backoff *retry.Backoff
	logger  *logrus.Logger

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewNotifier(db *database.Database, sender ChatSender, config models.NotifyConfig, logger *logrus.Logger) *Notifier {
	backoffCfg := retry.DefaultBackoffConfig()
	backoffCfg.InitialDelay = time.Duration(config.RetryBackoffMs) * time.Millisecond
	backoffCfg.MaxDelay = time.Duration(config.RetryMaxBackoffMs) * time.Millisecond
	backoffCfg.MaxAttempts = config.MaxAttempts

	return &Notifier{
		db:      db,
		sender:  sender,
		config:  config,
		backoff: retry.NewBackoff(backoffCfg),
		logger:  logger,
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker goroutine. Call Stop to shut it down.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.run(ctx)
	}()
}

// Stop signals the worker and waits for it to exit.
func (n *Notifier) Stop() {
	close(n.stopCh)
	n.wg.Wait()
}

// Wake nudges the worker without blocking. Safe from any goroutine; a wake
// while one is already pending is coalesced.
func (n *Notifier) Wake() {
	select {
	case n.wakeCh <- struct{}{}:
	default:
	}
}

func (n *Notifier) run(ctx context.Context) {
	interval := time.Duration(n.config.PollIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.logger.WithField("poll_interval", interval).Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			n.logger.Info("Notification worker stopped")
			return
		case <-n.wakeCh:
		case <-ticker.C:
		}

		if err := n.ProcessPending(ctx); err != nil {
			n.logger.WithError(err).Error("Notification sweep failed")
		}
	}
}

// ProcessPending performs one synchronous sweep: every request whose chat
// message is missing or stale and whose retry delay has elapsed gets one
// delivery attempt. Exported so callers can drive the mirror to convergence
// deterministically.
func (n *Notifier) ProcessPending(ctx context.Context) error {
	pending, err := n.db.ListUnmirrored(ctx, n.config.MaxAttempts, n.config.BatchSize, time.Now().UTC())
	if err != nil {
		return err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.syncRequest(ctx, &pending[i])
	}

	if undelivered, err := n.db.CountUndelivered(ctx); err == nil {
		metrics.SetGauge("notify_undelivered", float64(undelivered), nil, "Requests abandoned after repeated delivery failures")
	}
	return nil
}

// syncRequest converges one request's chat message: first delivery sends a
// new message and stores its handle, anything after edits in place.
func (n *Notifier) syncRequest(ctx context.Context, req *models.Request) {
	sendCtx, cancel := context.WithTimeout(ctx, time.Duration(n.config.SendTimeoutSec)*time.Second)
	defer cancel()

	text := render.RequestCard(req)
	actions := render.RequestActions(req)

	var messageID int64
	var err error
	if req.HasHandle() {
		messageID = *req.MessageID
		err = n.sender.EditMessage(sendCtx, req.ChatID, messageID, text, actions)
	} else {
		messageID, err = n.sender.SendMessage(sendCtx, req.ChatID, text, actions)
	}

	if err != nil {
		code := errors.ErrCodeDeliveryFailed
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = errors.ErrCodeTimeout
		}
		deliveryErr := errors.WrapRetryable(err, code, "chat delivery failed")

		retryAt := time.Now().UTC().Add(n.backoff.GetNextDelay(req.NotifyAttempts + 1))

		metrics.IncrementCounter("notify_failures_total", nil, "Failed chat deliveries")
		n.logger.WithError(deliveryErr).WithFields(logrus.Fields{
			"request_id": req.ID,
			"attempts":   req.NotifyAttempts + 1,
			"retry_at":   retryAt,
		}).Warn("Chat delivery failed")

		if recErr := n.db.RecordNotifyFailure(ctx, req.ID, n.config.MaxAttempts, retryAt); recErr != nil {
			n.logger.WithError(recErr).Error("Failed to record delivery failure")
		}
		return
	}

	if recErr := n.db.RecordNotifySuccess(ctx, req.ID, messageID, req.Status); recErr != nil {
		n.logger.WithError(recErr).Error("Failed to record delivery success")
		return
	}

	metrics.IncrementCounter("notify_deliveries_total", nil, "Successful chat deliveries")
	n.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"message_id": messageID,
		"status":     req.Status,
	}).Debug("Chat message converged")
}
