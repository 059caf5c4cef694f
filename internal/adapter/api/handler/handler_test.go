package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/tenant-provisioner/internal/adapter/api"
	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/domain/mocks"
	"github.com/user/tenant-provisioner/internal/usecase"
	"github.com/user/tenant-provisioner/internal/vault"
)

type allowAllKeys struct{}

func (allowAllKeys) IsValid(ctx context.Context, key string) (bool, error) {
	return key == "valid-key", nil
}

type apiFixture struct {
	server   http.Handler
	userRepo *mocks.MockUserRepository
	queue    *mocks.MockJobQueue
	vault    *vault.Vault
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())

	tenantRepo := mocks.NewMockTenantRepository()
	userRepo := mocks.NewMockUserRepository()
	recordRepo := mocks.NewMockDNSRecordRepository()
	queue := &mocks.MockJobQueue{}
	dedup := mocks.NewMockDedupStore()
	billing := mocks.NewMockBillingClient()
	messaging := &mocks.MockMessagingClient{}

	v, err := vault.New("handler-test-secret")
	if err != nil {
		t.Fatalf("failed to create vault: %v", err)
	}

	syncer := usecase.NewBillingSyncer(tenantRepo, billing, logger, m)
	onboarding := usecase.NewOnboardingUseCase(
		tenantRepo, userRepo, recordRepo, queue, dedup, billing, messaging, syncer,
		usecase.OnboardingConfig{
			PlatformHost:      "mail.platform.example",
			TempDomain:        "mail-temp.example",
			DKIMSelector:      "mail",
			DKIMPublicKey:     "MIGfMA0GCSq",
			DefaultQuotaMB:    5120,
			InviteTemplateID:  "mailbox-ready",
			WelcomeTemplateID: "tenant-welcome",
			JobDedupTTL:       time.Hour,
		},
		logger, m,
	)
	webmail := usecase.NewWebmailLaunchUseCase(
		userRepo, v, vault.NewHandoffIssuer("handoff-secret"),
		"https://webmail.platform.example/login", logger,
	)
	verifier := usecase.NewVerifyDomainUseCase(tenantRepo, recordRepo, nil, time.Second, logger, m)

	return &apiFixture{
		server:   api.NewRouter(logger, allowAllKeys{}, onboarding, verifier, webmail),
		userRepo: userRepo,
		queue:    queue,
		vault:    v,
	}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", "valid-key")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestSignupEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/signup", map[string]interface{}{
		"slug":           "acme",
		"name":           "Acme Corp",
		"domain":         "acme-corp.com",
		"admin_email":    "boss@acme-corp.com",
		"admin_password": "hunter22",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Tenant struct {
			ID           string `json:"id"`
			DomainStatus string `json:"domain_status"`
		} `json:"tenant"`
		DNSRecords []domain.DNSRecord `json:"dns_records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Tenant.DomainStatus != string(domain.DomainPending) {
		t.Errorf("expected pending domain status, got %s", result.Tenant.DomainStatus)
	}
	if len(result.DNSRecords) == 0 {
		t.Error("expected planned DNS records in response")
	}
}

func TestSignupValidationError(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/signup", map[string]interface{}{
		"slug":           "acme",
		"domain":         "not a domain",
		"admin_email":    "boss@acme.com",
		"admin_password": "pw",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "validation") {
		t.Errorf("expected validation error kind, got %s", rec.Body.String())
	}
}

func TestSignupDuplicateSlug(t *testing.T) {
	f := newAPIFixture(t)

	payload := map[string]interface{}{
		"slug":           "acme",
		"admin_email":    "boss@acme.mail-temp.example",
		"admin_password": "pw",
	}
	if rec := f.request(t, http.MethodPost, "/api/signup", payload); rec.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d", rec.Code)
	}

	payload["admin_email"] = "other@acme.mail-temp.example"
	rec := f.request(t, http.MethodPost, "/api/signup", payload)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate slug, got %d", rec.Code)
	}
}

func TestRejectsMissingAPIKey(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without API key, got %d", rec.Code)
	}
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from health check, got %d", rec.Code)
	}
}

func TestEmployeeLifecycleEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/signup", map[string]interface{}{
		"slug":           "acme",
		"admin_email":    "boss@acme.mail-temp.example",
		"admin_password": "pw",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}
	var signup struct {
		Tenant struct {
			ID string `json:"id"`
		} `json:"tenant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &signup); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	tenantID := signup.Tenant.ID

	rec = f.request(t, http.MethodPost, "/api/tenants/"+tenantID+"/employees", map[string]interface{}{
		"email":    "worker@acme.mail-temp.example",
		"name":     "Worker",
		"password": "s3cret!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding employee, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode employee response: %v", err)
	}

	rec = f.request(t, http.MethodDelete, "/api/tenants/"+tenantID+"/employees/"+created.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 removing employee, got %d: %s", rec.Code, rec.Body.String())
	}

	// Second removal surfaces as a validation failure.
	rec = f.request(t, http.MethodDelete, "/api/tenants/"+tenantID+"/employees/"+created.ID.String(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on double removal, got %d", rec.Code)
	}
}

func TestEmployeeEndpointRejectsBadUUID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/tenants/not-a-uuid/employees", map[string]interface{}{
		"email":    "worker@acme.mail-temp.example",
		"password": "pw",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed UUID, got %d", rec.Code)
	}
}

func TestWebmailSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	encrypted, err := f.vault.Encrypt("Tr0ub4dor&3")
	if err != nil {
		t.Fatalf("failed to encrypt fixture password: %v", err)
	}
	user := &domain.User{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Email:             "worker@acme-corp.com",
		AccountStatus:     domain.AccountActive,
		EncryptedPassword: encrypted,
	}
	f.userRepo.Users[user.ID] = user

	rec := f.request(t, http.MethodPost, "/api/users/"+user.ID.String()+"/webmail-session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result usecase.LaunchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode launch result: %v", err)
	}
	if result.Mode != usecase.LaunchSSO {
		t.Errorf("expected sso mode, got %s", result.Mode)
	}
	if result.Token == "" {
		t.Error("expected handoff token in response")
	}
}

func TestWebmailSessionRedeemEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	encrypted, err := f.vault.Encrypt("Tr0ub4dor&3")
	if err != nil {
		t.Fatalf("failed to encrypt fixture password: %v", err)
	}
	user := &domain.User{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Email:             "worker@acme-corp.com",
		AccountStatus:     domain.AccountActive,
		EncryptedPassword: encrypted,
	}
	f.userRepo.Users[user.ID] = user

	rec := f.request(t, http.MethodPost, "/api/users/"+user.ID.String()+"/webmail-session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var launched usecase.LaunchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &launched); err != nil {
		t.Fatalf("failed to decode launch result: %v", err)
	}

	rec = f.request(t, http.MethodPost, "/api/webmail-session/redeem", map[string]string{
		"token": launched.Token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var redeemed usecase.RedeemResult
	if err := json.Unmarshal(rec.Body.Bytes(), &redeemed); err != nil {
		t.Fatalf("failed to decode redeem result: %v", err)
	}
	if redeemed.Email != user.Email || redeemed.Password != "Tr0ub4dor&3" {
		t.Errorf("unexpected redeemed credentials: %+v", redeemed)
	}

	rec = f.request(t, http.MethodPost, "/api/webmail-session/redeem", map[string]string{
		"token": launched.Token[:len(launched.Token)-2] + "xx",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for tampered token, got %d", rec.Code)
	}
}

func TestWebmailSessionUnknownUser(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/users/"+uuid.New().String()+"/webmail-session", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}
