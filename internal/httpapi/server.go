package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"solrouter/internal/domain"
	"solrouter/internal/engine"
	"solrouter/internal/hub"
	"solrouter/internal/store"
)

// Server serves the order router HTTP API.
type Server struct {
	engine *engine.Engine
	hub    *hub.Hub
	log    *slog.Logger
}

// NewServer creates the API server over an engine and a notification hub.
func NewServer(eng *engine.Engine, h *hub.Hub, log *slog.Logger) *Server {
	return &Server{engine: eng, hub: h, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", s.handleSubmit)
	mux.HandleFunc("GET /api/orders", s.handleList)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGet)
	mux.HandleFunc("GET /api/queue/stats", s.handleStats)
	mux.HandleFunc("POST /api/admin/reset", s.handleReset)
	mux.HandleFunc("POST /api/admin/archive", s.handleArchive)
	mux.HandleFunc("GET /ws/orders/{id}", s.handleOrderStream)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A missing type is a validation error like any other missing field;
	// domain.NewOrder rejects it.
	order, err := s.engine.Submit(r.Context(), req.Type, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("submitting order", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept order")
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		OrderID:   order.ID,
		Status:    order.Status,
		WebSocket: "/ws/orders/" + order.ID,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := s.engine.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.log.Error("reading order", "order", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	orders, err := s.engine.ListOrders(r.Context(), limit)
	if err != nil {
		s.log.Error("listing orders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, OrdersResponse{Orders: orders, Count: len(orders)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.log.Error("reading queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.log.Error("resetting queue", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Archive(r.Context())
	if err != nil {
		s.log.Error("archiving orders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to archive orders")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveResponse{Archived: n})
}
