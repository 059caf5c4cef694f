package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/adapter/metrics"
	"github.com/user/tenant-provisioner/internal/dns"
	"github.com/user/tenant-provisioner/internal/domain"
)

// OnboardingConfig carries the static platform settings the onboarding flows
// need to plan DNS records and address mailboxes.
type OnboardingConfig struct {
	PlatformHost      string
	TempDomain        string
	DKIMSelector      string
	DKIMPublicKey     string
	DefaultQuotaMB    int64
	InviteTemplateID  string
	WelcomeTemplateID string
	JobDedupTTL       time.Duration
}

// OnboardingUseCase drives tenant signup and the employee lifecycle. Mailbox
// work always goes through the job queue; only database writes and billing
// bootstrap happen synchronously.
type OnboardingUseCase struct {
	tenantRepo domain.TenantRepository
	userRepo   domain.UserRepository
	recordRepo domain.DNSRecordRepository
	queue      domain.JobQueue
	dedup      domain.DedupStore
	billing    domain.BillingClient
	messaging  domain.MessagingClient
	syncer     *BillingSyncer
	cfg        OnboardingConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewOnboardingUseCase(
	tenantRepo domain.TenantRepository,
	userRepo domain.UserRepository,
	recordRepo domain.DNSRecordRepository,
	queue domain.JobQueue,
	dedup domain.DedupStore,
	billing domain.BillingClient,
	messaging domain.MessagingClient,
	syncer *BillingSyncer,
	cfg OnboardingConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *OnboardingUseCase {
	return &OnboardingUseCase{
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		recordRepo: recordRepo,
		queue:      queue,
		dedup:      dedup,
		billing:    billing,
		messaging:  messaging,
		syncer:     syncer,
		cfg:        cfg,
		logger:     logger.With("component", "onboarding"),
		metrics:    m,
	}
}

// SignupInput is the payload for creating a new tenant with its first admin.
type SignupInput struct {
	Slug          string
	Name          string
	Domain        string
	ManagedByUs   bool
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// SignupResult returns what the caller needs to render the post-signup page.
type SignupResult struct {
	Tenant     *domain.Tenant     `json:"tenant"`
	Admin      *domain.User       `json:"admin"`
	DNSRecords []domain.DNSRecord `json:"dns_records,omitempty"`
}

// Signup creates the tenant, bootstraps billing, creates the admin user and
// queues the admin's mailbox. With no custom domain the tenant starts on a
// temporary subdomain that needs no verification; with one, the expected DNS
// records are planned and a verification job is queued.
func (uc *OnboardingUseCase) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if slug == "" {
		return nil, domain.Validationf("slug is required")
	}
	if in.AdminEmail == "" || in.AdminPassword == "" {
		return nil, domain.Validationf("admin email and password are required")
	}

	now := time.Now().UTC()
	tenant := &domain.Tenant{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      in.Name,
		SeatCount: 1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.Domain == "" {
		// Temporary subdomains live under our own zone, so there is
		// nothing for the customer to verify.
		tenant.UsesTemporaryDomain = true
		tenant.TemporarySubdomain = slug + "." + uc.cfg.TempDomain
		tenant.DomainManagementMode = domain.ManagementNone
		tenant.DomainStatus = domain.DomainVerified
		tenant.DomainVerifiedAt = &now
	} else {
		normalized, err := dns.ValidateDomain(in.Domain)
		if err != nil {
			return nil, err
		}
		tenant.Domain = normalized
		tenant.DomainStatus = domain.DomainPending
		if in.ManagedByUs {
			tenant.DomainManagementMode = domain.ManagementAgencyManaged
		} else {
			tenant.DomainManagementMode = domain.ManagementSelfManaged
		}
	}

	if err := uc.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}

	// Billing bootstrap is best effort: a provider outage must not block
	// signup, and the reconciliation loop repairs the refs later.
	uc.bootstrapBilling(ctx, tenant, in.AdminEmail)

	admin := &domain.User{
		ID:            uuid.New(),
		TenantID:      tenant.ID,
		Email:         in.AdminEmail,
		Name:          in.AdminName,
		Role:          domain.RoleAdmin,
		AccountStatus: domain.AccountUnprovisioned,
		QuotaMB:       uc.cfg.DefaultQuotaMB,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.userRepo.Create(ctx, admin); err != nil {
		return nil, err
	}

	var records []domain.DNSRecord
	if tenant.Domain != "" {
		plan, err := dns.Plan(dns.PlanInput{
			Domain:        tenant.Domain,
			PlatformHost:  uc.cfg.PlatformHost,
			DKIMSelector:  uc.cfg.DKIMSelector,
			DKIMPublicKey: uc.cfg.DKIMPublicKey,
		})
		if err != nil {
			return nil, err
		}
		if err := uc.recordRepo.ReplaceForTenant(ctx, tenant.ID, plan); err != nil {
			return nil, err
		}
		records = plan

		uc.enqueue(ctx, domain.Job{
			Type:     domain.JobVerifyDNS,
			TenantID: tenant.ID,
		}, tenant.ID)
	}

	uc.enqueueProvision(ctx, tenant, admin, in.AdminPassword)

	if err := uc.messaging.SendTemplatedMessage(ctx, admin.Email, uc.cfg.WelcomeTemplateID, map[string]string{
		"tenant_name": tenant.Name,
		"mail_domain": tenant.MailDomain(),
	}); err != nil {
		uc.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		uc.logger.Warn("failed to send welcome message", "tenant_id", tenant.ID, "error", err)
	} else {
		uc.metrics.NotificationsTotal.WithLabelValues("success").Inc()
	}

	uc.logger.Info("tenant signed up",
		"tenant_id", tenant.ID, "slug", tenant.Slug, "domain_status", tenant.DomainStatus)

	return &SignupResult{Tenant: tenant, Admin: admin, DNSRecords: records}, nil
}

// EmployeeInput is the payload for adding a mailbox-bearing employee.
type EmployeeInput struct {
	Email      string
	Name       string
	Password   string
	AlertAddon bool
	QuotaMB    int64
}

// AddEmployee creates the user, reserves the seat (and addon) on the
// tenant's counters and queues the mailbox provisioning job.
func (uc *OnboardingUseCase) AddEmployee(ctx context.Context, tenantID uuid.UUID, in EmployeeInput) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, domain.Validationf("email and password are required")
	}

	tenant, err := uc.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	mailDomain := tenant.MailDomain()
	if !strings.HasSuffix(strings.ToLower(in.Email), "@"+mailDomain) {
		return nil, domain.Validationf("email must belong to the tenant mail domain %s", mailDomain)
	}

	quota := in.QuotaMB
	if quota <= 0 {
		quota = uc.cfg.DefaultQuotaMB
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Email:         strings.ToLower(in.Email),
		Name:          in.Name,
		Role:          domain.RoleMember,
		AlertAddon:    in.AlertAddon,
		AccountStatus: domain.AccountUnprovisioned,
		QuotaMB:       quota,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	addonDelta := 0
	if in.AlertAddon {
		addonDelta = 1
	}
	if _, err := uc.tenantRepo.AdjustCounters(ctx, tenantID, 1, addonDelta); err != nil {
		return nil, err
	}

	uc.enqueueProvision(ctx, tenant, user, in.Password)
	uc.syncAfterCounterChange(ctx, tenantID, in.AlertAddon)

	if err := uc.messaging.SendTemplatedMessage(ctx, user.Email, uc.cfg.InviteTemplateID, map[string]string{
		"tenant_name": tenant.Name,
		"user_name":   user.Name,
	}); err != nil {
		uc.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		uc.logger.Warn("failed to send invite message", "user_id", user.ID, "error", err)
	} else {
		uc.metrics.NotificationsTotal.WithLabelValues("success").Inc()
	}

	return user, nil
}

// RemoveEmployee releases the seat, marks any still-pending provisioning as
// superseded and queues mailbox deletion. Removing twice is a validation
// error; the first removal already queued the teardown.
func (uc *OnboardingUseCase) RemoveEmployee(ctx context.Context, tenantID, userID uuid.UUID) error {
	user, err := uc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if user.Removed() {
		return domain.Validationf("user %s is already removed", user.Email)
	}

	if err := uc.userRepo.MarkRemoved(ctx, userID); err != nil {
		return err
	}

	addonDelta := 0
	if user.AlertAddon {
		addonDelta = -1
	}
	if _, err := uc.tenantRepo.AdjustCounters(ctx, tenantID, -1, addonDelta); err != nil {
		return err
	}

	// A provision job for this user may still be queued behind us. The
	// marker makes the worker drop it instead of resurrecting the mailbox.
	if err := uc.dedup.Set(ctx, domain.SupersedeKey(userID), "removed", uc.cfg.JobDedupTTL); err != nil {
		uc.logger.Warn("failed to set supersede marker", "user_id", userID, "error", err)
	}

	uc.enqueue(ctx, domain.Job{
		Type:     domain.JobDeprovisionMailbox,
		TenantID: tenantID,
		UserID:   userID,
		Email:    user.Email,
	}, userID)

	uc.syncAfterCounterChange(ctx, tenantID, user.AlertAddon)
	return nil
}

// ChangeDomain points the tenant at a new custom domain and replaces the
// expected record set. Previous verification state is discarded.
func (uc *OnboardingUseCase) ChangeDomain(ctx context.Context, tenantID uuid.UUID, domainName string, managedByUs bool) ([]domain.DNSRecord, error) {
	normalized, err := dns.ValidateDomain(domainName)
	if err != nil {
		return nil, err
	}

	tenant, err := uc.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tenant.Domain = normalized
	tenant.UsesTemporaryDomain = false
	tenant.DomainStatus = domain.DomainPending
	tenant.DomainVerifiedAt = nil
	if managedByUs {
		tenant.DomainManagementMode = domain.ManagementAgencyManaged
	} else {
		tenant.DomainManagementMode = domain.ManagementSelfManaged
	}
	if err := uc.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}

	plan, err := dns.Plan(dns.PlanInput{
		Domain:        normalized,
		PlatformHost:  uc.cfg.PlatformHost,
		DKIMSelector:  uc.cfg.DKIMSelector,
		DKIMPublicKey: uc.cfg.DKIMPublicKey,
	})
	if err != nil {
		return nil, err
	}
	if err := uc.recordRepo.ReplaceForTenant(ctx, tenantID, plan); err != nil {
		return nil, err
	}

	uc.enqueue(ctx, domain.Job{
		Type:     domain.JobVerifyDNS,
		TenantID: tenantID,
	}, tenantID)

	uc.logger.Info("tenant domain changed", "tenant_id", tenantID, "domain", normalized)
	return plan, nil
}

// DNSRecords returns the tenant's expected record set with the latest
// per-record verification state.
func (uc *OnboardingUseCase) DNSRecords(ctx context.Context, tenantID uuid.UUID) ([]domain.DNSRecord, error) {
	if _, err := uc.tenantRepo.FindByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return uc.recordRepo.ListByTenant(ctx, tenantID)
}

// RequestPasswordChange queues a password change against the mail platform.
// The stored credential is only replaced once the platform accepts the new
// password, so webmail handoff keeps working until then.
func (uc *OnboardingUseCase) RequestPasswordChange(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if newPassword == "" {
		return domain.Validationf("password is required")
	}

	user, err := uc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Removed() {
		return domain.Validationf("user %s is removed", user.Email)
	}
	if user.AccountStatus != domain.AccountActive {
		return domain.Validationf("mailbox for %s is not active yet", user.Email)
	}

	uc.enqueue(ctx, domain.Job{
		Type:     domain.JobChangeMailboxPassword,
		TenantID: user.TenantID,
		UserID:   userID,
		Email:    user.Email,
		Password: newPassword,
	}, userID)
	return nil
}

// ToggleAlertAddon flips the per-user addon flag and adjusts the tenant's
// billed addon counter.
func (uc *OnboardingUseCase) ToggleAlertAddon(ctx context.Context, tenantID, userID uuid.UUID, enabled bool) error {
	user, err := uc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if user.Removed() {
		return domain.Validationf("user %s is removed", user.Email)
	}
	if user.AlertAddon == enabled {
		return nil
	}

	user.AlertAddon = enabled
	if err := uc.userRepo.Update(ctx, user); err != nil {
		return err
	}

	delta := 1
	if !enabled {
		delta = -1
	}
	if _, err := uc.tenantRepo.AdjustCounters(ctx, tenantID, 0, delta); err != nil {
		return err
	}

	if err := uc.syncer.SyncQuantity(ctx, tenantID, domain.DimensionAlertAddon); err != nil {
		uc.logger.Warn("addon quantity push failed, reconciliation will repair",
			"tenant_id", tenantID, "error", err)
	}
	return nil
}

func (uc *OnboardingUseCase) bootstrapBilling(ctx context.Context, tenant *domain.Tenant, adminEmail string) {
	customerRef, err := uc.billing.CreateCustomer(ctx, tenant.ID.String(), adminEmail, tenant.Name)
	if err != nil {
		uc.logger.Error("failed to create billing customer", "tenant_id", tenant.ID, "error", err)
		return
	}

	subscriptionRef, err := uc.billing.CreateSubscription(ctx, customerRef, map[domain.BillingDimension]int{
		domain.DimensionSeats:      tenant.SeatCount,
		domain.DimensionAlertAddon: tenant.AlertAddonCount,
	})
	if err != nil {
		uc.logger.Error("failed to create billing subscription", "tenant_id", tenant.ID, "error", err)
		return
	}

	tenant.BillingCustomerRef = customerRef
	tenant.BillingSubscriptionRef = subscriptionRef
	if err := uc.tenantRepo.Update(ctx, tenant); err != nil {
		uc.logger.Error("failed to store billing refs", "tenant_id", tenant.ID, "error", err)
	}
}

// enqueueProvision queues the mailbox creation job and moves the user to
// pending so the UI can show progress.
func (uc *OnboardingUseCase) enqueueProvision(ctx context.Context, tenant *domain.Tenant, user *domain.User, password string) {
	uc.enqueue(ctx, domain.Job{
		Type:     domain.JobProvisionMailbox,
		TenantID: tenant.ID,
		UserID:   user.ID,
		Email:    user.Email,
		Password: password,
	}, user.ID)

	if err := uc.userRepo.UpdateAccountStatus(ctx, user.ID, domain.AccountPending, ""); err != nil {
		uc.logger.Error("failed to mark account pending", "user_id", user.ID, "error", err)
	}
}

// enqueue pushes a job unless an identical one was queued within the dedup
// window. Rapid repeated requests collapse into a single queued job.
func (uc *OnboardingUseCase) enqueue(ctx context.Context, job domain.Job, targetID uuid.UUID) {
	job.ID = uuid.New().String()
	job.DedupKey = domain.JobDedupKey(job.TenantID, job.Type, targetID)
	job.EnqueuedAt = time.Now().UTC()

	fresh, err := uc.dedup.SetNX(ctx, "job:"+job.DedupKey, "1", uc.cfg.JobDedupTTL)
	if err != nil {
		// Dedup is an optimization. Workers are idempotent, so a
		// duplicate job is safe; a silently dropped one is not.
		uc.logger.Warn("dedup check failed, enqueueing anyway", "dedup_key", job.DedupKey, "error", err)
		fresh = true
	}
	if !fresh {
		uc.logger.Debug("suppressed duplicate job", "dedup_key", job.DedupKey)
		return
	}

	if err := uc.queue.Enqueue(ctx, job); err != nil {
		uc.logger.Error("failed to enqueue job", "type", job.Type, "dedup_key", job.DedupKey, "error", err)
	}
}

func (uc *OnboardingUseCase) syncAfterCounterChange(ctx context.Context, tenantID uuid.UUID, addonChanged bool) {
	if err := uc.syncer.SyncQuantity(ctx, tenantID, domain.DimensionSeats); err != nil {
		uc.logger.Warn("seat quantity push failed, reconciliation will repair", "tenant_id", tenantID, "error", err)
	}
	if addonChanged {
		if err := uc.syncer.SyncQuantity(ctx, tenantID, domain.DimensionAlertAddon); err != nil {
			uc.logger.Warn("addon quantity push failed, reconciliation will repair", "tenant_id", tenantID, "error", err)
		}
	}
}
