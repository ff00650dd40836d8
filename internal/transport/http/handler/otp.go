package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notify-gateway/internal/application/otp"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/pkg/validate"
)

// OTPHandler handles the public OTP lifecycle endpoints.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

type sendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose,omitempty"`
	Name    string `json:"name,omitempty"`
}

type verifyOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Code    string `json:"code" validate:"required"`
	Purpose string `json:"purpose,omitempty"`
}

type resendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.Send(r.Context(), req.Email, req.Purpose, req.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.Verify(r.Context(), req.Email, req.Code, req.Purpose)
	if err != nil {
		// A wrong code still reports how many attempts remain.
		if res != nil && errors.Is(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, res)
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.Resend(r.Context(), req.Email, req.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter required")
		return
	}
	statuses, err := h.svc.Status(r.Context(), email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}
