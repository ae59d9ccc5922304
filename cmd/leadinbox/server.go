package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"leadinbox/internal/errors"
	"leadinbox/internal/middleware"
	"leadinbox/internal/models"
	"leadinbox/internal/service"
	"leadinbox/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP face of the engine: webhook intake plus health, debug,
// and metrics endpoints. The chat-facing surface lives in internal/bot.
type Server struct {
	httpServer *http.Server
	config     models.ServerConfig
	intake     *service.IntakeGateway
	tokens     *service.TokenRegistry
	queries    *service.QueryService
	limiter    *rateLimiter
	logger     *logrus.Logger
}

func NewServer(config models.ServerConfig, intake *service.IntakeGateway, tokens *service.TokenRegistry, queries *service.QueryService, logger *logrus.Logger) *Server {
	s := &Server{
		config:  config,
		intake:  intake,
		tokens:  tokens,
		queries: queries,
		limiter: newRateLimiter(config.RateLimitPerMinute, time.Minute),
		logger:  logger,
	}

	router := mux.NewRouter()
	router.Use(middleware.Observability(logger))
	router.HandleFunc("/webhook/{token}", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/debug/leads/{token}", s.handleDebugLeads).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(config.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(config.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(config.IdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook accepts one form submission. A 200 means the request is
// durably stored; it says nothing about chat delivery, which is
// asynchronous.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if !s.limiter.allow(clientKey(r)) {
		s.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED")
		return
	}

	if err := validation.ValidateHTTPRequestSize(r, s.config.MaxBodyBytes); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, string(errors.ErrCodeInvalidPayload))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidPayload))
		return
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, string(errors.ErrCodeInvalidPayload))
		return
	}

	req, err := s.intake.Ingest(r.Context(), token, body)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"request_id": req.ID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDebugLeads lists a tenant's recent requests as JSON. Same token as
// the webhook, so a tenant can only ever see its own data.
func (s *Server) handleDebugLeads(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := validation.ValidateToken(token); err != nil {
		s.writeAppError(w, err)
		return
	}
	tenant, err := s.tokens.Resolve(r.Context(), token)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	requests, err := s.queries.Last(r.Context(), tenant.ID, 0)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if requests == nil {
		requests = []models.Request{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"requests": requests,
	})
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrCodeInvalidPayload, errors.ErrCodeInvalidQuery:
		status = http.StatusBadRequest
	case errors.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	s.writeError(w, status, string(code))
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string) {
	s.writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": code,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to write response")
	}
}
