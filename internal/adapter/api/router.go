package api

import (
	"log/slog"
	"net/http"

	"github.com/user/tenant-provisioner/internal/adapter/api/handler"
	"github.com/user/tenant-provisioner/internal/adapter/api/middleware"
	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the provisioning
// API. Every /api route sits behind API key authentication; path patterns use
// the Go 1.22+ method-and-wildcard syntax.
func NewRouter(
	logger *slog.Logger,
	apiKeyRepo domain.APIKeyRepository,
	onboarding *usecase.OnboardingUseCase,
	verifier *usecase.VerifyDomainUseCase,
	webmail *usecase.WebmailLaunchUseCase,
) http.Handler {
	mux := http.NewServeMux()

	tenantHandler := handler.NewTenantHandler(onboarding, verifier, logger)
	userHandler := handler.NewUserHandler(onboarding, webmail, logger)

	auth := middleware.Auth(apiKeyRepo, logger)

	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	// Tenant lifecycle
	mux.Handle("POST /api/signup", protected(tenantHandler.Signup))
	mux.Handle("PUT /api/tenants/{tenantID}/domain", protected(tenantHandler.ChangeDomain))
	mux.Handle("GET /api/tenants/{tenantID}/dns-records", protected(tenantHandler.DNSRecords))
	mux.Handle("POST /api/tenants/{tenantID}/domain/verify", protected(tenantHandler.VerifyDomain))

	// Employee lifecycle
	mux.Handle("POST /api/tenants/{tenantID}/employees", protected(userHandler.AddEmployee))
	mux.Handle("DELETE /api/tenants/{tenantID}/employees/{userID}", protected(userHandler.RemoveEmployee))
	mux.Handle("PUT /api/tenants/{tenantID}/employees/{userID}/alert-addon", protected(userHandler.SetAlertAddon))

	// Mailbox access
	mux.Handle("POST /api/users/{userID}/password", protected(userHandler.ChangePassword))
	mux.Handle("POST /api/users/{userID}/webmail-session", protected(userHandler.WebmailSession))
	mux.Handle("POST /api/webmail-session/redeem", protected(userHandler.RedeemWebmailSession))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
