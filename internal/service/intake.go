package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"leadinbox/internal/database"
	"leadinbox/internal/errors"
	"leadinbox/internal/metrics"
	"leadinbox/internal/models"
	"leadinbox/internal/privacy"
	"leadinbox/internal/tracing"
	"leadinbox/internal/validation"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Waker is the notifier's wake-up hook. Intake and lifecycle poke it after
// every write so the chat mirror catches up without waiting for the next
// poll tick.
type Waker interface {
	Wake()
}

// IntakeGateway accepts webhook submissions and turns them into stored
// requests.
type IntakeGateway struct {
	db       *database.Database
	tokens   *TokenRegistry
	notifier Waker
	logger   *logrus.Logger
}

func NewIntakeGateway(db *database.Database, tokens *TokenRegistry, notifier Waker, logger *logrus.Logger) *IntakeGateway {
	return &IntakeGateway{db: db, tokens: tokens, notifier: notifier, logger: logger}
}

// Ingest authenticates the token, parses the submission, and persists a new
// request in status new. The raw body is kept verbatim alongside the
// extracted fields. Delivery to the chat happens asynchronously; a success
// here only means the request is durably stored.
func (g *IntakeGateway) Ingest(ctx context.Context, token string, body []byte) (*models.Request, error) {
	ctx, span := tracing.StartSpan(ctx, "intake_ingest")
	defer span.End()

	if err := validation.ValidateToken(token); err != nil {
		metrics.IncrementCounter("intake_rejected_total", map[string]string{"reason": "unauthorized"}, "Rejected webhook submissions")
		return nil, err
	}

	tenant, err := g.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUnauthorized) {
			metrics.IncrementCounter("intake_rejected_total", map[string]string{"reason": "unauthorized"}, "Rejected webhook submissions")
			g.logger.WithField("token", privacy.MaskToken(token)).Warn("Webhook submission with unknown token")
		}
		return nil, err
	}

	fields, err := parseSubmission(body)
	if err != nil {
		metrics.IncrementCounter("intake_rejected_total", map[string]string{"reason": "invalid_payload"}, "Rejected webhook submissions")
		return nil, err
	}

	clientID, err := g.db.UpsertClientByPhone(ctx, tenant.ID, fields.name, fields.phone)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to upsert client")
	}

	req := &models.Request{
		TenantID: tenant.ID,
		ClientID: clientID,
		Source:   fields.source,
		Name:     fields.name,
		Phone:    fields.phone,
		Text:     fields.text,
		Payload:  string(body),
		ChatID:   tenant.ChatID,
	}

	stored, err := g.db.InsertRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to store request")
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int64("request.id", stored.ID),
		attribute.Int64("tenant.id", tenant.ID),
	)
	metrics.IncrementCounter("intake_accepted_total", nil, "Accepted webhook submissions")

	g.logger.WithFields(logrus.Fields{
		"request_id": stored.ID,
		"tenant_id":  tenant.ID,
		"source":     stored.Source,
		"phone":      privacy.MaskPhone(stored.Phone),
	}).Info("Request accepted")

	g.notifier.Wake()
	return stored, nil
}

type submissionFields struct {
	source string
	name   string
	phone  string
	text   string
}

// parseSubmission extracts the well-known fields from a webhook body.
// Parsing is deliberately permissive about types: form builders send
// numbers and booleans where strings belong, so scalars are coerced.
// Nested objects or arrays in a well-known field are rejected outright.
func parseSubmission(body []byte) (*submissionFields, error) {
	if len(body) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPayload, "empty body")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidPayload, "body is not a JSON object")
	}

	fields := &submissionFields{}
	for key, dst := range map[string]*string{
		"source": &fields.source,
		"name":   &fields.name,
		"phone":  &fields.phone,
		"text":   &fields.text,
	} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		s, err := coerceScalar(key, value)
		if err != nil {
			return nil, err
		}
		*dst = s
	}
	return fields, nil
}

func coerceScalar(key string, raw json.RawMessage) (string, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPayload, fmt.Sprintf("malformed field %q", key))
	}

	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case bool:
		return fmt.Sprint(v), nil
	case float64:
		// json.Number formatting keeps integers free of a trailing ".0".
		return json.Number(strings.TrimSpace(string(raw))).String(), nil
	default:
		return "", errors.New(errors.ErrCodeInvalidPayload,
			fmt.Sprintf("field %q must be a scalar", key))
	}
}
