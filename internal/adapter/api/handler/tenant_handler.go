package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/usecase"
)

// TenantHandler handles HTTP requests for tenant signup and domain management.
type TenantHandler struct {
	onboarding *usecase.OnboardingUseCase
	verifier   *usecase.VerifyDomainUseCase
	logger     *slog.Logger
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(onboarding *usecase.OnboardingUseCase, verifier *usecase.VerifyDomainUseCase, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{onboarding: onboarding, verifier: verifier, logger: logger}
}

// Signup handles new tenant registration.
// POST /api/signup
func (h *TenantHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Slug          string `json:"slug"`
		Name          string `json:"name"`
		Domain        string `json:"domain"`
		ManagedByUs   bool   `json:"managed_by_us"`
		AdminEmail    string `json:"admin_email"`
		AdminName     string `json:"admin_name"`
		AdminPassword string `json:"admin_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.onboarding.Signup(r.Context(), usecase.SignupInput{
		Slug:          payload.Slug,
		Name:          payload.Name,
		Domain:        payload.Domain,
		ManagedByUs:   payload.ManagedByUs,
		AdminEmail:    payload.AdminEmail,
		AdminName:     payload.AdminName,
		AdminPassword: payload.AdminPassword,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, result)
}

// ChangeDomain assigns or replaces the tenant's custom domain.
// PUT /api/tenants/{tenantID}/domain
func (h *TenantHandler) ChangeDomain(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}

	var payload struct {
		Domain      string `json:"domain"`
		ManagedByUs bool   `json:"managed_by_us"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	records, err := h.onboarding.ChangeDomain(r.Context(), tenantID, payload.Domain, payload.ManagedByUs)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"dns_records": records})
}

// DNSRecords returns the expected record set with per-record check state.
// GET /api/tenants/{tenantID}/dns-records
func (h *TenantHandler) DNSRecords(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}

	records, err := h.onboarding.DNSRecords(r.Context(), tenantID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"dns_records": records})
}

// VerifyDomain runs an on-demand verification pass against live DNS.
// POST /api/tenants/{tenantID}/domain/verify
func (h *TenantHandler) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}

	records, err := h.verifier.Verify(r.Context(), tenantID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	allVerified := len(records) > 0
	for _, rec := range records {
		if !rec.IsVerified {
			allVerified = false
		}
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"verified":    allVerified,
		"dns_records": records,
	})
}

// pathUUID extracts a UUID path parameter, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		http.Error(w, name+" must be a valid UUID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
