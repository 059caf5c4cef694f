package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/pkg/keylock"
	"github.com/user/tenant-provisioner/internal/vault"
)

// errSuperseded signals that a queued provision was overtaken by a
// deprovision request and must be dropped without touching the mail platform.
var errSuperseded = errors.New("job superseded by deprovision")

// ProcessJobsUseCase is the worker loop body: it reads a batch from the
// queue, executes each job and settles it as acknowledged, requeued for
// retry, or dead-lettered.
//
// Delivery is at-least-once, so every handler is written to be safely
// re-runnable against both the database and the mail platform.
type ProcessJobsUseCase struct {
	queue       domain.JobQueue
	dedup       domain.DedupStore
	userRepo    domain.UserRepository
	mail        domain.MailPlatformClient
	vault       *vault.Vault
	verifier    *VerifyDomainUseCase
	locks       *keylock.KeyedMutex
	logger      *slog.Logger
	metrics     *metrics.Metrics
	group       string
	consumer    string
	batchSize   int
	maxAttempts int
}

func NewProcessJobsUseCase(
	queue domain.JobQueue,
	dedup domain.DedupStore,
	userRepo domain.UserRepository,
	mail domain.MailPlatformClient,
	v *vault.Vault,
	verifier *VerifyDomainUseCase,
	logger *slog.Logger,
	m *metrics.Metrics,
	group, consumer string,
	batchSize, maxAttempts int,
) *ProcessJobsUseCase {
	return &ProcessJobsUseCase{
		queue:       queue,
		dedup:       dedup,
		userRepo:    userRepo,
		mail:        mail,
		vault:       v,
		verifier:    verifier,
		locks:       keylock.New(),
		logger:      logger.With("component", "job_processor"),
		metrics:     m,
		group:       group,
		consumer:    consumer,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// ProcessBatch reads one batch and settles every job in it. Returns the
// number of jobs handled.
func (uc *ProcessJobsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := uc.queue.ReadBatch(ctx, uc.group, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read job batch", "error", err)
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read job batch", "count", len(jobs))

	var acked []string
	var dead []domain.Job

	for _, job := range jobs {
		err := uc.handle(ctx, job)

		switch {
		case err == nil:
			uc.metrics.JobsTotal.WithLabelValues(string(job.Type), "success").Inc()
			uc.settle(ctx, job)
			acked = append(acked, job.StreamMessageID)

		case errors.Is(err, errSuperseded):
			uc.metrics.JobsTotal.WithLabelValues(string(job.Type), "superseded").Inc()
			uc.logger.Info("dropped superseded job", "job_id", job.ID, "user_id", job.UserID)
			uc.settle(ctx, job)
			acked = append(acked, job.StreamMessageID)

		case domain.IsTransient(err):
			acked = append(acked, job.StreamMessageID)
			if job.Attempt+1 >= uc.maxAttempts {
				uc.metrics.JobsTotal.WithLabelValues(string(job.Type), "dead").Inc()
				uc.metrics.DeadLetterTotal.WithLabelValues(string(job.Type)).Inc()
				job.FailureReason = err.Error()
				dead = append(dead, job)
				uc.recordFailure(ctx, job, err)
				uc.settle(ctx, job)
			} else {
				uc.metrics.JobRetriesTotal.WithLabelValues(string(job.Type)).Inc()
				uc.requeue(ctx, job, err)
			}

		default:
			// Permanent failure: record it on the user and park the job
			// for an operator. Retrying would fail the same way.
			uc.metrics.JobsTotal.WithLabelValues(string(job.Type), "error").Inc()
			uc.metrics.DeadLetterTotal.WithLabelValues(string(job.Type)).Inc()
			uc.recordFailure(ctx, job, err)
			job.FailureReason = err.Error()
			dead = append(dead, job)
			uc.settle(ctx, job)
			acked = append(acked, job.StreamMessageID)
		}
	}

	if len(dead) > 0 {
		if err := uc.queue.MoveToDead(ctx, dead); err != nil {
			uc.logger.Error("failed to move jobs to dead-letter stream", "error", err)
		}
	}

	if err := uc.queue.Acknowledge(ctx, uc.group, acked...); err != nil {
		uc.logger.Error("failed to acknowledge jobs", "error", err)
		return len(jobs), err
	}

	return len(jobs), nil
}

func (uc *ProcessJobsUseCase) handle(ctx context.Context, job domain.Job) error {
	// Serialize work per user so a provision and deprovision for the same
	// mailbox can never interleave across goroutines.
	if job.UserID != uuid.Nil {
		unlock := uc.locks.Lock("user:" + job.UserID.String())
		defer unlock()
	}

	switch job.Type {
	case domain.JobProvisionMailbox:
		return uc.provision(ctx, job)
	case domain.JobDeprovisionMailbox:
		return uc.deprovision(ctx, job)
	case domain.JobChangeMailboxPassword:
		return uc.changePassword(ctx, job)
	case domain.JobVerifyDNS:
		_, err := uc.verifier.Verify(ctx, job.TenantID)
		if err != nil && !domain.IsValidation(err) {
			return domain.Transient(err)
		}
		return nil
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (uc *ProcessJobsUseCase) provision(ctx context.Context, job domain.Job) error {
	// A deprovision queued after this job wins regardless of delivery order.
	marker, err := uc.dedup.Get(ctx, domain.SupersedeKey(job.UserID))
	if err != nil {
		return domain.Transient(err)
	}
	if marker != "" {
		return errSuperseded
	}

	user, err := uc.userRepo.FindByID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errSuperseded
		}
		return domain.Transient(err)
	}
	if user.Removed() {
		return errSuperseded
	}
	if user.AccountStatus == domain.AccountActive {
		return nil
	}

	err = uc.mail.CreateMailbox(ctx, job.Email, job.Password, user.QuotaMB)
	if err != nil && !errors.Is(err, domain.ErrMailboxExists) {
		return err
	}

	encrypted, err := uc.vault.Encrypt(job.Password)
	if err != nil {
		return err
	}
	if err := uc.userRepo.SetEncryptedPassword(ctx, job.UserID, encrypted); err != nil {
		return domain.Transient(err)
	}
	if err := uc.userRepo.UpdateAccountStatus(ctx, job.UserID, domain.AccountActive, ""); err != nil {
		return domain.Transient(err)
	}

	uc.logger.Info("mailbox provisioned", "user_id", job.UserID, "email", job.Email)
	return nil
}

func (uc *ProcessJobsUseCase) deprovision(ctx context.Context, job domain.Job) error {
	err := uc.mail.DeleteMailbox(ctx, job.Email)
	if err != nil && !errors.Is(err, domain.ErrMailboxNotFound) {
		return err
	}

	if err := uc.userRepo.UpdateAccountStatus(ctx, job.UserID, domain.AccountUnprovisioned, ""); err != nil {
		// The user row may already be gone; the mailbox is what matters.
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Transient(err)
		}
	}

	uc.logger.Info("mailbox deprovisioned", "user_id", job.UserID, "email", job.Email)
	return nil
}

func (uc *ProcessJobsUseCase) changePassword(ctx context.Context, job domain.Job) error {
	user, err := uc.userRepo.FindByID(ctx, job.UserID)
	if err != nil {
		return domain.Transient(err)
	}
	if user.Removed() {
		return errSuperseded
	}

	if err := uc.mail.SetPassword(ctx, job.Email, job.Password); err != nil {
		return err
	}

	// The platform accepted the new password; only now replace the stored
	// credential so webmail handoff never hands out a stale password.
	encrypted, err := uc.vault.Encrypt(job.Password)
	if err != nil {
		return err
	}
	if err := uc.userRepo.SetEncryptedPassword(ctx, job.UserID, encrypted); err != nil {
		return domain.Transient(err)
	}

	uc.logger.Info("mailbox password changed", "user_id", job.UserID, "email", job.Email)
	return nil
}

// settle releases the dedup slot so the same logical job can be queued again.
func (uc *ProcessJobsUseCase) settle(ctx context.Context, job domain.Job) {
	if job.DedupKey == "" {
		return
	}
	if err := uc.dedup.Delete(ctx, "job:"+job.DedupKey); err != nil {
		uc.logger.Warn("failed to release dedup key", "dedup_key", job.DedupKey, "error", err)
	}
}

func (uc *ProcessJobsUseCase) requeue(ctx context.Context, job domain.Job, cause error) {
	job.Attempt++
	job.StreamMessageID = ""
	uc.logger.Warn("job failed transiently, requeueing",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)
	if err := uc.queue.Enqueue(ctx, job); err != nil {
		uc.logger.Error("failed to requeue job", "job_id", job.ID, "error", err)
	}
}

func (uc *ProcessJobsUseCase) recordFailure(ctx context.Context, job domain.Job, cause error) {
	switch job.Type {
	case domain.JobProvisionMailbox, domain.JobChangeMailboxPassword:
		if err := uc.userRepo.UpdateAccountStatus(ctx, job.UserID, domain.AccountError, cause.Error()); err != nil {
			uc.logger.Error("failed to record account error", "user_id", job.UserID, "error", err)
		}
	}
	uc.logger.Error("job failed permanently",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)
}
