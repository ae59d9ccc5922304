package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"leadinbox/internal/constants"
	"leadinbox/internal/database"
	"leadinbox/internal/models"
	"leadinbox/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWaker struct{}

func (nopWaker) Wake() {}

func setupServer(t *testing.T) (*Server, *models.Tenant, *database.Database) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := service.NewTokenRegistry(db, logger)
	intake := service.NewIntakeGateway(db, tokens, nopWaker{}, logger)
	queries := service.NewQueryService(db)

	tenant, err := tokens.Issue(context.Background(), 100)
	require.NoError(t, err)

	cfg := models.ServerConfig{
		Port:               constants.DefaultServerPort,
		ReadTimeoutSec:     constants.DefaultReadTimeoutSec,
		WriteTimeoutSec:    constants.DefaultWriteTimeoutSec,
		IdleTimeoutSec:     constants.DefaultIdleTimeoutSec,
		MaxBodyBytes:       constants.DefaultMaxBodyBytes,
		RateLimitPerMinute: 1000,
	}
	server := NewServer(cfg, intake, tokens, queries, logger)
	t.Cleanup(server.limiter.stop)
	return server, tenant, db
}

func doRequest(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestWebhookAccepts(t *testing.T) {
	server, tenant, db := setupServer(t)

	rec := doRequest(server, http.MethodPost, "/webhook/"+tenant.Token,
		[]byte(`{"source":"landing","name":"Anna","phone":"+155500","text":"call me"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, true, payload["ok"])
	requestID := int64(payload["request_id"].(float64))

	stored, err := db.GetRequest(context.Background(), tenant.ID, requestID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Anna", stored.Name)
	assert.Equal(t, models.StatusNew, stored.Status)
}

func TestWebhookUnknownToken(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := doRequest(server, http.MethodPost, "/webhook/AAAAAAAAAAAAAAAAAAAAAA", []byte(`{}`))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, false, payload["ok"])
	assert.Equal(t, "UNAUTHORIZED", payload["error"])
}

func TestWebhookInvalidPayload(t *testing.T) {
	server, tenant, _ := setupServer(t)

	rec := doRequest(server, http.MethodPost, "/webhook/"+tenant.Token, []byte(`name=Anna`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAYLOAD", decodeBody(t, rec)["error"])
}

func TestWebhookBodyTooLarge(t *testing.T) {
	server, tenant, _ := setupServer(t)

	big := `{"text":"` + strings.Repeat("x", constants.DefaultMaxBodyBytes) + `"}`
	rec := doRequest(server, http.MethodPost, "/webhook/"+tenant.Token, []byte(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	server, tenant, _ := setupServer(t)

	rec := doRequest(server, http.MethodGet, "/webhook/"+tenant.Token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := doRequest(server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	server, tenant, _ := setupServer(t)

	doRequest(server, http.MethodPost, "/webhook/"+tenant.Token, []byte(`{"name":"Anna"}`))

	rec := doRequest(server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "counters")
}

func TestDebugLeads(t *testing.T) {
	server, tenant, _ := setupServer(t)

	doRequest(server, http.MethodPost, "/webhook/"+tenant.Token, []byte(`{"name":"Anna"}`))

	rec := doRequest(server, http.MethodGet, "/debug/leads/"+tenant.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	requests := payload["requests"].([]any)
	require.Len(t, requests, 1)

	first := requests[0].(map[string]any)
	assert.Equal(t, "Anna", first["name"])
	// Internal mirror bookkeeping never leaks through the debug surface.
	assert.NotContains(t, first, "payload")
	assert.NotContains(t, first, "chatId")
}

func TestDebugLeadsUnknownToken(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := doRequest(server, http.MethodGet, "/debug/leads/AAAAAAAAAAAAAAAAAAAAAA", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRateLimited(t *testing.T) {
	server, tenant, _ := setupServer(t)
	server.limiter.limit = 3

	var last int
	for i := 0; i < 4; i++ {
		rec := doRequest(server, http.MethodPost, "/webhook/"+tenant.Token, []byte(`{"name":"Anna"}`))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
