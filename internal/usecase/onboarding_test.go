package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/domain/mocks"
)

type onboardingFixture struct {
	uc         *OnboardingUseCase
	tenantRepo *mocks.MockTenantRepository
	userRepo   *mocks.MockUserRepository
	recordRepo *mocks.MockDNSRecordRepository
	queue      *mocks.MockJobQueue
	dedup      *mocks.MockDedupStore
	billing    *mocks.MockBillingClient
	messaging  *mocks.MockMessagingClient
}

func newOnboardingFixture() *onboardingFixture {
	f := &onboardingFixture{
		tenantRepo: mocks.NewMockTenantRepository(),
		userRepo:   mocks.NewMockUserRepository(),
		recordRepo: mocks.NewMockDNSRecordRepository(),
		queue:      &mocks.MockJobQueue{},
		dedup:      mocks.NewMockDedupStore(),
		billing:    mocks.NewMockBillingClient(),
		messaging:  &mocks.MockMessagingClient{},
	}

	logger := testLogger()
	syncer := NewBillingSyncer(f.tenantRepo, f.billing, logger, testMetrics())
	f.uc = NewOnboardingUseCase(
		f.tenantRepo, f.userRepo, f.recordRepo,
		f.queue, f.dedup, f.billing, f.messaging, syncer,
		OnboardingConfig{
			PlatformHost:      "mail.platform.example",
			TempDomain:        "mail-temp.example",
			DKIMSelector:      "mail",
			DKIMPublicKey:     "MIGfMA0GCSq",
			DefaultQuotaMB:    5120,
			InviteTemplateID:  "mailbox-ready",
			WelcomeTemplateID: "tenant-welcome",
			JobDedupTTL:       time.Hour,
		},
		logger, testMetrics(),
	)
	return f
}

func (f *onboardingFixture) signup(t *testing.T, in SignupInput) *SignupResult {
	t.Helper()
	result, err := f.uc.Signup(context.Background(), in)
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	return result
}

func TestSignupWithTemporarySubdomain(t *testing.T) {
	f := newOnboardingFixture()

	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminName:     "Boss",
		AdminPassword: "hunter22",
	})

	tenant := result.Tenant
	if !tenant.UsesTemporaryDomain {
		t.Error("expected tenant on temporary subdomain")
	}
	if tenant.TemporarySubdomain != "acme.mail-temp.example" {
		t.Errorf("unexpected temporary subdomain: %s", tenant.TemporarySubdomain)
	}
	if tenant.DomainStatus != domain.DomainVerified {
		t.Errorf("temporary subdomain must start verified, got %s", tenant.DomainStatus)
	}
	if tenant.DomainManagementMode != domain.ManagementNone {
		t.Errorf("temporary subdomain needs no management mode, got %s", tenant.DomainManagementMode)
	}
	if len(result.DNSRecords) != 0 {
		t.Errorf("expected no DNS records for temporary subdomain, got %d", len(result.DNSRecords))
	}
	if jobs := f.queue.EnqueuedOfType(domain.JobVerifyDNS); len(jobs) != 0 {
		t.Errorf("expected no verification job for temporary subdomain, got %d", len(jobs))
	}
}

func TestSignupWithCustomDomain(t *testing.T) {
	f := newOnboardingFixture()

	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		Domain:        "Acme-Corp.COM.",
		AdminEmail:    "boss@acme-corp.com",
		AdminPassword: "hunter22",
	})

	tenant := result.Tenant
	if tenant.Domain != "acme-corp.com" {
		t.Errorf("expected normalized domain, got %q", tenant.Domain)
	}
	if tenant.DomainStatus != domain.DomainPending {
		t.Errorf("expected pending domain status, got %s", tenant.DomainStatus)
	}
	if tenant.DomainManagementMode != domain.ManagementSelfManaged {
		t.Errorf("expected self managed mode, got %s", tenant.DomainManagementMode)
	}
	if len(result.DNSRecords) == 0 {
		t.Fatal("expected a planned DNS record set")
	}

	stored, err := f.recordRepo.ListByTenant(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("ListByTenant returned error: %v", err)
	}
	if len(stored) != len(result.DNSRecords) {
		t.Errorf("stored %d records, returned %d", len(stored), len(result.DNSRecords))
	}

	if jobs := f.queue.EnqueuedOfType(domain.JobVerifyDNS); len(jobs) != 1 {
		t.Errorf("expected one verification job, got %d", len(jobs))
	}
	if jobs := f.queue.EnqueuedOfType(domain.JobProvisionMailbox); len(jobs) != 1 {
		t.Errorf("expected one provision job for the admin, got %d", len(jobs))
	}
}

func TestSignupBootstrapsBilling(t *testing.T) {
	f := newOnboardingFixture()

	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})

	stored, err := f.tenantRepo.FindByID(context.Background(), result.Tenant.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if stored.BillingCustomerRef == "" || stored.BillingSubscriptionRef == "" {
		t.Error("expected billing refs stored after signup")
	}
	if got := f.billing.LastQuantity(stored.BillingSubscriptionRef, domain.DimensionSeats); got != 1 {
		t.Errorf("expected initial seat quantity 1, got %d", got)
	}
}

func TestSignupSurvivesBillingOutage(t *testing.T) {
	f := newOnboardingFixture()
	f.billing.CreateCustErr = errors.New("billing provider down")

	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})

	if result.Tenant.BillingSubscriptionRef != "" {
		t.Error("expected no subscription ref when billing is down")
	}
	// The mailbox path is independent of billing.
	if jobs := f.queue.EnqueuedOfType(domain.JobProvisionMailbox); len(jobs) != 1 {
		t.Errorf("expected provision job despite billing outage, got %d", len(jobs))
	}
}

func TestSignupRejectsMalformedDomain(t *testing.T) {
	f := newOnboardingFixture()

	_, err := f.uc.Signup(context.Background(), SignupInput{
		Slug:          "acme",
		Domain:        "not a domain",
		AdminEmail:    "boss@acme.com",
		AdminPassword: "hunter22",
	})
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAddEmployee(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})
	tenantID := result.Tenant.ID

	user, err := f.uc.AddEmployee(context.Background(), tenantID, EmployeeInput{
		Email:      "worker@acme.mail-temp.example",
		Name:       "Worker",
		Password:   "s3cret!",
		AlertAddon: true,
	})
	if err != nil {
		t.Fatalf("AddEmployee returned error: %v", err)
	}

	if user.AccountStatus != domain.AccountPending {
		t.Errorf("expected pending account after enqueue, got %s", user.AccountStatus)
	}
	if user.QuotaMB != 5120 {
		t.Errorf("expected default quota, got %d", user.QuotaMB)
	}

	tenant, _ := f.tenantRepo.FindByID(context.Background(), tenantID)
	if tenant.SeatCount != 2 || tenant.AlertAddonCount != 1 {
		t.Errorf("expected counters (2,1), got (%d,%d)", tenant.SeatCount, tenant.AlertAddonCount)
	}

	jobs := f.queue.EnqueuedOfType(domain.JobProvisionMailbox)
	if len(jobs) != 2 {
		t.Fatalf("expected admin + employee provision jobs, got %d", len(jobs))
	}
	last := jobs[len(jobs)-1]
	if last.Email != "worker@acme.mail-temp.example" || last.Password != "s3cret!" {
		t.Error("provision job must carry the mailbox credentials")
	}

	if got := f.billing.LastQuantity(tenant.BillingSubscriptionRef, domain.DimensionSeats); got != 2 {
		t.Errorf("expected seat quantity 2 pushed, got %d", got)
	}
	if got := f.billing.LastQuantity(tenant.BillingSubscriptionRef, domain.DimensionAlertAddon); got != 1 {
		t.Errorf("expected addon quantity 1 pushed, got %d", got)
	}

	if len(f.messaging.Sent) != 2 { // welcome + invite
		t.Errorf("expected welcome and invite messages, got %d", len(f.messaging.Sent))
	}
}

func TestAddEmployeeRejectsForeignDomain(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})

	_, err := f.uc.AddEmployee(context.Background(), result.Tenant.ID, EmployeeInput{
		Email:    "worker@elsewhere.com",
		Password: "s3cret!",
	})
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error for foreign email domain, got %v", err)
	}
}

func TestAddEmployeeCollapsesDuplicateJobs(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})
	tenantID := result.Tenant.ID

	user, err := f.uc.AddEmployee(context.Background(), tenantID, EmployeeInput{
		Email:    "worker@acme.mail-temp.example",
		Password: "s3cret!",
	})
	if err != nil {
		t.Fatalf("AddEmployee returned error: %v", err)
	}

	// A second password change request within the dedup window targets the
	// same user and job type; it must not queue a second job.
	f.userRepo.UpdateAccountStatus(context.Background(), user.ID, domain.AccountActive, "")
	if err := f.uc.RequestPasswordChange(context.Background(), user.ID, "new-pass-1"); err != nil {
		t.Fatalf("first password change returned error: %v", err)
	}
	if err := f.uc.RequestPasswordChange(context.Background(), user.ID, "new-pass-2"); err != nil {
		t.Fatalf("second password change returned error: %v", err)
	}

	if jobs := f.queue.EnqueuedOfType(domain.JobChangeMailboxPassword); len(jobs) != 1 {
		t.Errorf("expected duplicate password job suppressed, got %d jobs", len(jobs))
	}
}

func TestRemoveEmployee(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})
	tenantID := result.Tenant.ID

	user, err := f.uc.AddEmployee(context.Background(), tenantID, EmployeeInput{
		Email:      "worker@acme.mail-temp.example",
		Password:   "s3cret!",
		AlertAddon: true,
	})
	if err != nil {
		t.Fatalf("AddEmployee returned error: %v", err)
	}

	if err := f.uc.RemoveEmployee(context.Background(), tenantID, user.ID); err != nil {
		t.Fatalf("RemoveEmployee returned error: %v", err)
	}

	stored, _ := f.userRepo.FindByID(context.Background(), user.ID)
	if !stored.Removed() {
		t.Error("expected user marked removed")
	}

	tenant, _ := f.tenantRepo.FindByID(context.Background(), tenantID)
	if tenant.SeatCount != 1 || tenant.AlertAddonCount != 0 {
		t.Errorf("expected counters (1,0) after removal, got (%d,%d)", tenant.SeatCount, tenant.AlertAddonCount)
	}

	if jobs := f.queue.EnqueuedOfType(domain.JobDeprovisionMailbox); len(jobs) != 1 {
		t.Errorf("expected one deprovision job, got %d", len(jobs))
	}

	marker, _ := f.dedup.Get(context.Background(), domain.SupersedeKey(user.ID))
	if marker == "" {
		t.Error("expected supersede marker for the removed user")
	}

	// Removing again is a no-op error, not a second teardown.
	err = f.uc.RemoveEmployee(context.Background(), tenantID, user.ID)
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error on double removal, got %v", err)
	}
}

func TestRemoveEmployeeScopedToTenant(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})

	err := f.uc.RemoveEmployee(context.Background(), uuid.New(), result.Admin.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for wrong tenant, got %v", err)
	}
}

func TestChangeDomainReplansRecords(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})
	tenantID := result.Tenant.ID

	records, err := f.uc.ChangeDomain(context.Background(), tenantID, "acme-corp.com", true)
	if err != nil {
		t.Fatalf("ChangeDomain returned error: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected planned records for the new domain")
	}

	tenant, _ := f.tenantRepo.FindByID(context.Background(), tenantID)
	if tenant.Domain != "acme-corp.com" {
		t.Errorf("unexpected domain: %s", tenant.Domain)
	}
	if tenant.UsesTemporaryDomain {
		t.Error("expected temporary subdomain flag cleared")
	}
	if tenant.DomainStatus != domain.DomainPending {
		t.Errorf("expected pending status after domain change, got %s", tenant.DomainStatus)
	}
	if tenant.DomainManagementMode != domain.ManagementAgencyManaged {
		t.Errorf("expected agency managed mode, got %s", tenant.DomainManagementMode)
	}
	if jobs := f.queue.EnqueuedOfType(domain.JobVerifyDNS); len(jobs) != 1 {
		t.Errorf("expected one verification job, got %d", len(jobs))
	}
}

func TestToggleAlertAddon(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})
	tenantID := result.Tenant.ID

	if err := f.uc.ToggleAlertAddon(context.Background(), tenantID, result.Admin.ID, true); err != nil {
		t.Fatalf("ToggleAlertAddon returned error: %v", err)
	}

	tenant, _ := f.tenantRepo.FindByID(context.Background(), tenantID)
	if tenant.AlertAddonCount != 1 {
		t.Errorf("expected addon counter 1, got %d", tenant.AlertAddonCount)
	}
	if got := f.billing.LastQuantity(tenant.BillingSubscriptionRef, domain.DimensionAlertAddon); got != 1 {
		t.Errorf("expected addon quantity 1 pushed, got %d", got)
	}

	// Toggling to the same state changes nothing.
	if err := f.uc.ToggleAlertAddon(context.Background(), tenantID, result.Admin.ID, true); err != nil {
		t.Fatalf("idempotent toggle returned error: %v", err)
	}
	tenant, _ = f.tenantRepo.FindByID(context.Background(), tenantID)
	if tenant.AlertAddonCount != 1 {
		t.Errorf("expected addon counter unchanged, got %d", tenant.AlertAddonCount)
	}
}

func TestRequestPasswordChangeRequiresActiveMailbox(t *testing.T) {
	f := newOnboardingFixture()
	result := f.signup(t, SignupInput{
		Slug:          "acme",
		Name:          "Acme Corp",
		AdminEmail:    "boss@acme.mail-temp.example",
		AdminPassword: "hunter22",
	})

	// Admin is still pending: the mailbox does not exist yet.
	err := f.uc.RequestPasswordChange(context.Background(), result.Admin.ID, "new-pass")
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error for non-active mailbox, got %v", err)
	}
}
