package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranaconnect/kirana/internal/service"
)

func (s *Server) handleCreateBuyer(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBuyerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	b, err := s.cartSvc.CreateBuyer(r.Context(), in)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.cartSvc.GetCart(r.Context(), chi.URLParam(r, "buyerID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in service.AddItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	cart, err := s.cartSvc.AddItem(r.Context(), chi.URLParam(r, "buyerID"), in)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// handleUpdateQuantity sets an item's quantity. Zero or less removes the item.
func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	if body.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	cart, err := s.cartSvc.UpdateQuantity(r.Context(),
		chi.URLParam(r, "buyerID"), chi.URLParam(r, "itemID"), *body.Quantity)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := s.cartSvc.RemoveItem(r.Context(), chi.URLParam(r, "buyerID"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.cartSvc.ClearCart(r.Context(), chi.URLParam(r, "buyerID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// handleToggleNotifications pauses or resumes reminders for one item.
// Body: {"paused": true}
func (s *Server) handleToggleNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Paused *bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	if body.Paused == nil {
		writeError(w, http.StatusBadRequest, "paused is required")
		return
	}
	item, err := s.cartSvc.SetNotificationsPaused(r.Context(),
		chi.URLParam(r, "buyerID"), chi.URLParam(r, "itemID"), *body.Paused)
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.cartSvc.ListNotifications(r.Context(), chi.URLParam(r, "buyerID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.cartSvc.MarkNotificationRead(r.Context(),
		chi.URLParam(r, "buyerID"), chi.URLParam(r, "notificationID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleTriggerNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.cartSvc.TriggerManualNotification(r.Context(), chi.URLParam(r, "buyerID"))
	if err != nil {
		s.httpErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
