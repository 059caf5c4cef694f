package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/tenant-provisioner/internal/usecase"
)

// UserHandler handles HTTP requests for the employee lifecycle and webmail
// handoff.
type UserHandler struct {
	onboarding *usecase.OnboardingUseCase
	webmail    *usecase.WebmailLaunchUseCase
	logger     *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(onboarding *usecase.OnboardingUseCase, webmail *usecase.WebmailLaunchUseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{onboarding: onboarding, webmail: webmail, logger: logger}
}

// AddEmployee creates an employee and queues their mailbox.
// POST /api/tenants/{tenantID}/employees
func (h *UserHandler) AddEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}

	var payload struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		Password   string `json:"password"`
		AlertAddon bool   `json:"alert_addon"`
		QuotaMB    int64  `json:"quota_mb"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.onboarding.AddEmployee(r.Context(), tenantID, usecase.EmployeeInput{
		Email:      payload.Email,
		Name:       payload.Name,
		Password:   payload.Password,
		AlertAddon: payload.AlertAddon,
		QuotaMB:    payload.QuotaMB,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, user)
}

// RemoveEmployee releases the seat and queues mailbox teardown.
// DELETE /api/tenants/{tenantID}/employees/{userID}
func (h *UserHandler) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.onboarding.RemoveEmployee(r.Context(), tenantID, userID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetAlertAddon enables or disables the billable alert add-on for a user.
// PUT /api/tenants/{tenantID}/employees/{userID}/alert-addon
func (h *UserHandler) SetAlertAddon(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.onboarding.ToggleAlertAddon(r.Context(), tenantID, userID, payload.Enabled); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword queues a mailbox password change.
// POST /api/users/{userID}/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.onboarding.RequestPasswordChange(r.Context(), userID, payload.Password); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// WebmailSession issues a short-lived webmail handoff for a user.
// POST /api/users/{userID}/webmail-session
func (h *UserHandler) WebmailSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.webmail.Launch(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, result)
}

// RedeemWebmailSession exchanges a handoff token for the mailbox credentials
// it carries. The webmail front-end calls this with its own API key.
// POST /api/webmail-session/redeem
func (h *UserHandler) RedeemWebmailSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.webmail.Redeem(r.Context(), payload.Token)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, result)
}
