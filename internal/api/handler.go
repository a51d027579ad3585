// Package api exposes the HTTP/JSON front end: query submission and
// statistics, plus tool discovery and the static frontend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spudstack/tuber/internal/dispatch"
	"github.com/spudstack/tuber/internal/tool"
	"go.uber.org/zap"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	registry   *tool.Registry
	staticDir  string
	logger     *zap.Logger
}

// NewHandler creates the HTTP handler. staticDir may be empty to
// disable frontend serving.
func NewHandler(d *dispatch.Dispatcher, registry *tool.Registry, staticDir string, logger *zap.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		registry:   registry,
		staticDir:  staticDir,
		logger:     logger,
	}
}

// Router builds the chi router with all routes and permissive CORS,
// including the OPTIONS pre-flight response.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/query", h.handleQuery)
	r.Get("/stats", h.handleStats)
	r.Get("/health", h.handleHealth)
	r.Get("/tools", h.handleTools)

	if h.staticDir != "" {
		if _, err := os.Stat(h.staticDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))
		} else {
			h.logger.Warn("static dir not found, frontend disabled",
				zap.String("dir", h.staticDir))
		}
	}

	return r
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Response       string `json:"response"`
	ProcessingTime int64  `json:"processingTime"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	resp, err := h.dispatcher.Handle(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, dispatch.ErrEmptyQuery) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
			return
		}
		h.logger.Error("query handling failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Response:       resp.Answer,
		ProcessingTime: resp.ProcessingTimeMs,
	})
}

type statsResponse struct {
	TotalQueries            int64   `json:"totalQueries"`
	AverageProcessingTimeMs float64 `json:"averageProcessingTimeMs"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := h.dispatcher.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		TotalQueries:            snap.TotalQueries,
		AverageProcessingTimeMs: snap.AverageLatencyMs,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
