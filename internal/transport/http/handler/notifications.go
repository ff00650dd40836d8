package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/notify-gateway/internal/application/dispatch"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/transport/http/middleware"
)

// NotificationHandler serves the bearer-authenticated history endpoints.
// Recipients see only their own records; the admin role sees any.
type NotificationHandler struct {
	svc dispatch.Service
}

func NewNotificationHandler(svc dispatch.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	email := claims.Email
	if requested := r.URL.Query().Get("email"); requested != "" {
		if claims.Role != string(domain.RoleAdmin) && domain.NormalizeEmail(requested) != domain.NormalizeEmail(email) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		email = requested
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, next, err := h.svc.History(r.Context(), email, int32(limit), r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryEnvelope{Data: recs, NextCursor: next})
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if claims.Role != string(domain.RoleAdmin) && rec.Email != domain.NormalizeEmail(claims.Email) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
