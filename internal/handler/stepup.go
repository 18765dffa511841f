package handler

import (
	"net/http"
	"time"

	"github.com/stilehq/stile/internal/server/middleware"
	"github.com/stilehq/stile/internal/service"
)

// StepUpHandler serves the trusted-device and one-time-code endpoints. The
// device endpoints run behind the identity middleware; code verification is
// called service-to-service by the identity collaborator and carries the
// user in the body.
type StepUpHandler struct {
	svc *service.StepUpService
}

// NewStepUpHandler creates a StepUpHandler.
func NewStepUpHandler(svc *service.StepUpService) *StepUpHandler {
	return &StepUpHandler{svc: svc}
}

// RegisterDevice marks the caller's device as trusted for 30 days.
// POST /auth/v1/device
func (h *StepUpHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var body struct {
		DeviceToken string `json:"deviceToken"`
		DeviceName  string `json:"deviceName"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "deviceToken is required")
		return
	}

	expiresAt, err := h.svc.RegisterDevice(r.Context(), userID, body.DeviceToken, body.DeviceName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register device: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// CheckDevice reports whether the caller's device is currently trusted.
// Not-trusted is an expected outcome for first-time devices, so it is a 200.
// POST /auth/v1/device/check
func (h *StepUpHandler) CheckDevice(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var body struct {
		DeviceToken string `json:"deviceToken"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "deviceToken is required")
		return
	}

	trusted, err := h.svc.CheckDevice(r.Context(), userID, body.DeviceToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check device: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"trusted": trusted})
}

// ListDevices returns the caller's unexpired trusted devices, newest first.
// GET /auth/v1/device
func (h *StepUpHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	devices, err := h.svc.ListDevices(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list devices: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// VerifyCode checks and consumes a one-time code. 200 with valid=true on
// success; 400 with valid=false for anything else, without revealing
// whether the code was wrong, already used, or expired.
// POST /auth/v1/code/verify
func (h *StepUpHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if err := readJSON(r, &body); err != nil || body.UserID == "" || body.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"valid": false})
		return
	}

	valid, err := h.svc.VerifyCode(r.Context(), body.UserID, body.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify code: "+err.Error())
		return
	}
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"valid": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
}
