// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

// QueryProcessor is the orchestration boundary the server exposes.
type QueryProcessor interface {
	Process(ctx context.Context, req *models.Request) *models.Response
}

// Server owns the single exposed entry point.
type Server struct {
	processor QueryProcessor
	logger    logger.Logger
}

func New(processor QueryProcessor, log logger.Logger) *Server {
	return &Server{
		processor: processor,
		logger: log.With(map[string]interface{}{
			"component": "http-server",
		}),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		writeError(w, http.StatusBadRequest, "query_text is required")
		return
	}

	start := time.Now()
	response := s.processor.Process(r.Context(), &req)

	s.logger.Info("query handled", map[string]interface{}{
		"sessionId": req.SessionID,
		"category":  string(response.IntentCategory),
		"status":    string(response.ValidationStatus),
		"duration":  time.Since(start).String(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
