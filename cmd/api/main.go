package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/tenant-provisioner/internal/adapter/api"
	"github.com/user/tenant-provisioner/internal/adapter/billing"
	"github.com/user/tenant-provisioner/internal/adapter/messaging"
	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/adapter/repository/postgres"
	redisrepo "github.com/user/tenant-provisioner/internal/adapter/repository/redis"
	"github.com/user/tenant-provisioner/internal/adapter/scrub"
	"github.com/user/tenant-provisioner/internal/pkg/config"
	"github.com/user/tenant-provisioner/internal/pkg/logger"
	"github.com/user/tenant-provisioner/internal/usecase"
	"github.com/user/tenant-provisioner/internal/vault"

	_ "github.com/lib/pq" // Keep for postgres driver
)

const consumerGroup = "provisioners"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.New()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Repositories ---
	tenantRepo := postgres.NewTenantRepository(db, log)
	userRepo := postgres.NewUserRepository(db, log)
	recordRepo := postgres.NewDNSRecordRepository(db, log)
	apiKeyRepo := postgres.NewAPIKeyRepository(db, log, cfg.APIKeyCacheTTL, m)

	scrubber := scrub.NewScrubber(strings.Split(cfg.SecretFields, ","), log)
	jobQueue, err := redisrepo.NewJobQueue(redisClient, log, consumerGroup, scrubber)
	if err != nil {
		log.Error("failed to initialize job queue", "error", err)
		os.Exit(1)
	}
	dedupStore := redisrepo.NewDedupStore(redisClient)

	// --- External Clients ---
	billingClient := billing.NewClient(cfg.BillingAPIBaseURL, cfg.BillingAPIKey, cfg.BillingRPS, cfg.ExternalAPITimeout, log)
	messagingClient := messaging.NewClient(cfg.MessagingAPIBaseURL, cfg.MessagingAPIKey, cfg.ExternalAPITimeout, log)

	credentialVault, err := vault.New(cfg.VaultSecret)
	if err != nil {
		log.Error("failed to initialize credential vault", "error", err)
		os.Exit(1)
	}
	handoffIssuer := vault.NewHandoffIssuer(cfg.HandoffSigningSecret)

	// --- Use Cases ---
	syncer := usecase.NewBillingSyncer(tenantRepo, billingClient, log, m)
	onboarding := usecase.NewOnboardingUseCase(
		tenantRepo, userRepo, recordRepo, jobQueue, dedupStore,
		billingClient, messagingClient, syncer,
		usecase.OnboardingConfig{
			PlatformHost:      cfg.MailPlatformHost,
			TempDomain:        cfg.MailTempDomain,
			DKIMSelector:      cfg.DKIMSelector,
			DKIMPublicKey:     cfg.DKIMPublicKey,
			DefaultQuotaMB:    cfg.DefaultQuotaMB,
			InviteTemplateID:  cfg.InviteTemplateID,
			WelcomeTemplateID: cfg.WelcomeTemplateID,
			JobDedupTTL:       cfg.JobDedupTTL,
		},
		log, m,
	)
	verifier := usecase.NewVerifyDomainUseCase(tenantRepo, recordRepo, net.DefaultResolver, cfg.DNSTimeout, log, m)
	webmail := usecase.NewWebmailLaunchUseCase(userRepo, credentialVault, handoffIssuer, cfg.WebmailLoginURL, log)

	// --- Admin and Metrics Server ---
	queueAdmin := redisrepo.NewQueueAdmin(redisClient, log)
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(queueAdmin, log),
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- API Server ---
	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      api.NewRouter(log, apiKeyRepo, onboarding, verifier, webmail),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", "error", err)
	}

	log.Info("servers shut down gracefully")
}
