package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notify-gateway/internal/application/dispatch"
	"github.com/notify-gateway/internal/application/otp"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/pkg/validate"
)

// notificationRetentionDays is the archive window for the cleanup action.
const notificationRetentionDays = 30

// InternalHandler serves the service-to-service routes: direct dispatch,
// ledger management, maintenance sweeps, and stats.
type InternalHandler struct {
	dispatchSvc dispatch.Service
	otpSvc      otp.Service
}

func NewInternalHandler(dispatchSvc dispatch.Service, otpSvc otp.Service) *InternalHandler {
	return &InternalHandler{dispatchSvc: dispatchSvc, otpSvc: otpSvc}
}

func (h *InternalHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.dispatchSvc.Send(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type multiChannelRequest struct {
	domain.NotificationRequest
	Channels []domain.Channel `json:"channels" validate:"required,min=1"`
}

type multiChannelResponse struct {
	Success bool                    `json:"success"`
	Results []domain.DispatchResult `json:"results"`
}

func (h *InternalHandler) SendMulti(w http.ResponseWriter, r *http.Request) {
	var req multiChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Channels) == 0 {
		writeError(w, http.StatusBadRequest, "channels required")
		return
	}
	ok, results := h.dispatchSvc.SendMultiChannel(r.Context(), req.NotificationRequest, req.Channels)
	writeJSON(w, http.StatusOK, multiChannelResponse{Success: ok, Results: results})
}

type ledgerRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required"`
}

func (h *InternalHandler) InvalidateVerified(w http.ResponseWriter, r *http.Request) {
	var req ledgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.otpSvc.Invalidate(r.Context(), req.Email, req.Purpose); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification invalidated"})
}

func (h *InternalHandler) CheckVerified(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	purpose := r.URL.Query().Get("purpose")
	if email == "" || purpose == "" {
		writeError(w, http.StatusBadRequest, "email and purpose query parameters required")
		return
	}
	verified, err := h.otpSvc.IsVerified(r.Context(), email, purpose)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifiedEnvelope{Email: domain.NormalizeEmail(email), Purpose: purpose, Verified: verified})
}

func (h *InternalHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	switch action {
	case "cleanup-otps":
		deleted, err := h.otpSvc.CleanupExpired(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MaintenanceEnvelope{Action: action, Affected: deleted})

	case "cleanup-notifications":
		deleted, key, err := h.dispatchSvc.CleanupOld(r.Context(), notificationRetentionDays*24*time.Hour)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MaintenanceEnvelope{Action: action, Affected: deleted, ArchiveKey: key})

	case "retry-failed":
		retried, successful, err := h.dispatchSvc.RetryFailed(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MaintenanceEnvelope{Action: action, Affected: retried, Successful: successful})

	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *InternalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dispatchSvc.Stats(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
