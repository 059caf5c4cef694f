package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/user/tenant-provisioner/internal/adapter/billing"
	"github.com/user/tenant-provisioner/internal/adapter/mailapi"
	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/adapter/repository/postgres"
	redisrepo "github.com/user/tenant-provisioner/internal/adapter/repository/redis"
	"github.com/user/tenant-provisioner/internal/adapter/scrub"
	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/pkg/config"
	"github.com/user/tenant-provisioner/internal/pkg/logger"
	"github.com/user/tenant-provisioner/internal/usecase"
	"github.com/user/tenant-provisioner/internal/vault"
)

const (
	consumerGroup      = "provisioners"
	processingInterval = 1 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting provisioning worker")

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
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
	log.Info("connected to postgres")

	// A unique consumer name per instance keeps pending-entry ownership clean.
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "worker-default"
	}

	// Repositories
	tenantRepo := postgres.NewTenantRepository(db, log)
	userRepo := postgres.NewUserRepository(db, log)
	recordRepo := postgres.NewDNSRecordRepository(db, log)

	scrubber := scrub.NewScrubber(strings.Split(cfg.SecretFields, ","), log)
	jobQueue, err := redisrepo.NewJobQueue(redisClient, log, consumerGroup, scrubber)
	if err != nil {
		log.Error("failed to initialize job queue", "error", err)
		os.Exit(1)
	}
	dedupStore := redisrepo.NewDedupStore(redisClient)

	// External clients
	mailClient := mailapi.NewClient(cfg.MailAPIBaseURL, cfg.MailAPIKey, cfg.ExternalAPITimeout, log)
	billingClient := billing.NewClient(cfg.BillingAPIBaseURL, cfg.BillingAPIKey, cfg.BillingRPS, cfg.ExternalAPITimeout, log)

	credentialVault, err := vault.New(cfg.VaultSecret)
	if err != nil {
		log.Error("failed to initialize credential vault", "error", err)
		os.Exit(1)
	}

	// Use cases
	verifier := usecase.NewVerifyDomainUseCase(tenantRepo, recordRepo, net.DefaultResolver, cfg.DNSTimeout, log, m)
	syncer := usecase.NewBillingSyncer(tenantRepo, billingClient, log, m)
	processor := usecase.NewProcessJobsUseCase(
		jobQueue, dedupStore, userRepo, mailClient, credentialVault, verifier,
		log, m, consumerGroup, consumerName,
		cfg.WorkerBatchSize, cfg.JobMaxAttempts,
	)

	// Periodic billing reconciliation repairs pushes that failed at write time
	// and re-checks domains stuck waiting on DNS propagation.
	go reconcileLoop(ctx, cfg.ReconcileInterval, syncer, tenantRepo, jobQueue, log)

	ticker := time.NewTicker(processingInterval)
	defer ticker.Stop()

	log.Info("worker started, processing jobs...", "group", consumerGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := processor.ProcessBatch(ctx); err != nil {
				log.Error("error processing batch", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down worker loop")
			break Loop
		}
	}

	log.Info("worker shut down gracefully")
}

func reconcileLoop(
	ctx context.Context,
	interval time.Duration,
	syncer *usecase.BillingSyncer,
	tenantRepo domain.TenantRepository,
	queue domain.JobQueue,
	log *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := syncer.ReconcileAll(ctx); err != nil {
				log.Error("billing reconciliation failed", "error", err)
			}
			requeueStuckVerifications(ctx, tenantRepo, queue, log)
		case <-ctx.Done():
			return
		}
	}
}

// requeueStuckVerifications re-checks domains still waiting on DNS
// propagation. Customers rarely re-trigger verification themselves after
// fixing their zone.
func requeueStuckVerifications(ctx context.Context, tenantRepo domain.TenantRepository, queue domain.JobQueue, log *slog.Logger) {
	tenants, err := tenantRepo.List(ctx)
	if err != nil {
		log.Error("failed to list tenants for re-verification", "error", err)
		return
	}

	for _, tenant := range tenants {
		if tenant.DomainStatus != domain.DomainDNSPending {
			continue
		}
		job := domain.Job{
			ID:         uuid.NewString(),
			Type:       domain.JobVerifyDNS,
			DedupKey:   domain.JobDedupKey(tenant.ID, domain.JobVerifyDNS, tenant.ID),
			TenantID:   tenant.ID,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := queue.Enqueue(ctx, job); err != nil {
			log.Error("failed to requeue domain verification", "tenant_id", tenant.ID, "error", err)
		}
	}
}
