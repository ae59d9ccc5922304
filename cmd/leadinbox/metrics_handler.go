package main

import (
	"encoding/json"
	"net/http"

	"leadinbox/internal/metrics"
)

// handleMetrics serves the in-process metrics snapshot as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snapshot := metrics.GetRegistry().Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.WithError(err).Error("Failed to write metrics snapshot")
	}
}
