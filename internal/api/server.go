package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranaconnect/kirana/internal/service"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	cartSvc  service.CartService
	sweepSvc service.SweepService
	logger   *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(cartSvc service.CartService, sweepSvc service.SweepService, logger *slog.Logger) *Server {
	return &Server{
		cartSvc:  cartSvc,
		sweepSvc: sweepSvc,
		logger:   logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/version", s.handleVersion)

	r.Post("/buyers", s.handleCreateBuyer)
	r.Route("/buyers/{buyerID}", func(r chi.Router) {
		// Cart
		r.Get("/cart", s.handleGetCart)
		r.Delete("/cart", s.handleClearCart)
		r.Post("/cart/items", s.handleAddItem)
		r.Patch("/cart/items/{itemID}", s.handleUpdateQuantity)
		r.Delete("/cart/items/{itemID}", s.handleRemoveItem)
		r.Put("/cart/items/{itemID}/notifications", s.handleToggleNotifications)

		// Notification log
		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{notificationID}/read", s.handleMarkRead)
		r.Post("/notifications/trigger", s.handleTriggerNotification)
	})

	// Operator actions
	r.Post("/admin/sweep", s.handleRunSweep)
	r.Get("/admin/sweeps", s.handleListSweeps)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// httpErr maps service errors to HTTP status codes.
func (s *Server) httpErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *service.NotFoundError
		validation *service.ValidationError
		conflict   *service.ConflictError
		delivery   *service.DeliveryError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &delivery):
		// The record is persisted; return it so the caller can see the failure.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":        delivery.Error(),
			"notification": delivery.Notification,
		})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
