package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/tenant-provisioner/internal/domain"
)

// MockTenantRepository is an in-memory implementation of domain.TenantRepository
// for testing. Errors can be injected per method family.
type MockTenantRepository struct {
	mu      sync.Mutex
	Tenants map[uuid.UUID]*domain.Tenant
	Err     error
}

func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{Tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (m *MockTenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.Tenants {
		if existing.Slug == t.Slug || (t.Domain != "" && existing.Domain == t.Domain) {
			return domain.ErrDuplicate
		}
	}
	cp := *t
	m.Tenants[t.ID] = &cp
	return nil
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTenantRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTenantRepository) Update(ctx context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Tenants[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	m.Tenants[t.ID] = &cp
	return nil
}

func (m *MockTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]domain.Tenant, 0, len(m.Tenants))
	for _, t := range m.Tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (m *MockTenantRepository) AdjustCounters(ctx context.Context, id uuid.UUID, seatDelta, addonDelta int) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t.SeatCount += seatDelta
	t.AlertAddonCount += addonDelta
	if t.SeatCount < 0 || t.AlertAddonCount < 0 || t.AlertAddonCount > t.SeatCount {
		t.SeatCount -= seatDelta
		t.AlertAddonCount -= addonDelta
		return nil, domain.Validationf("counter adjustment violates seat constraints")
	}
	cp := *t
	return &cp, nil
}

func (m *MockTenantRepository) UpdateDomainStatus(ctx context.Context, id uuid.UUID, status domain.DomainStatus, verifiedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	t, ok := m.Tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.DomainStatus = status
	t.DomainVerifiedAt = verifiedAt
	return nil
}

// MockUserRepository is an in-memory implementation of domain.UserRepository.
type MockUserRepository struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*domain.User
	Err   error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.User
	for _, u := range m.Users {
		if u.TenantID == tenantID && !u.Removed() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *MockUserRepository) Update(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockUserRepository) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.AccountStatus = status
	u.AccountError = reason
	return nil
}

func (m *MockUserRepository) SetEncryptedPassword(ctx context.Context, id uuid.UUID, encrypted string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.EncryptedPassword = encrypted
	return nil
}

func (m *MockUserRepository) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	u.RemovedAt = &now
	return nil
}

func (m *MockUserRepository) TouchWebmailLogin(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastWebmailLogin = &now
	return nil
}

// MockDNSRecordRepository is an in-memory implementation of domain.DNSRecordRepository.
type MockDNSRecordRepository struct {
	mu      sync.Mutex
	Records map[uuid.UUID][]domain.DNSRecord // keyed by tenant id
	Err     error
}

func NewMockDNSRecordRepository() *MockDNSRecordRepository {
	return &MockDNSRecordRepository{Records: make(map[uuid.UUID][]domain.DNSRecord)}
}

func (m *MockDNSRecordRepository) ReplaceForTenant(ctx context.Context, tenantID uuid.UUID, records []domain.DNSRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := make([]domain.DNSRecord, len(records))
	copy(cp, records)
	m.Records[tenantID] = cp
	return nil
}

func (m *MockDNSRecordRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.DNSRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	cp := make([]domain.DNSRecord, len(m.Records[tenantID]))
	copy(cp, m.Records[tenantID])
	return cp, nil
}

func (m *MockDNSRecordRepository) UpdateVerification(ctx context.Context, id uuid.UUID, verified bool, checkError string, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for tenantID, recs := range m.Records {
		for i := range recs {
			if recs[i].ID == id {
				recs[i].IsVerified = verified
				recs[i].CheckError = checkError
				at := checkedAt
				recs[i].LastCheckedAt = &at
				m.Records[tenantID] = recs
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// MockJobQueue records enqueued jobs and serves configured batches.
type MockJobQueue struct {
	mu              sync.Mutex
	Enqueued        []domain.Job
	ReadBatchResult []domain.Job
	AckedMessageIDs []string
	DeadJobs        []domain.Job
	EnqueueErr      error
	ReadErr         error
	AckErr          error
	DeadErr         error
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.Enqueued = append(m.Enqueued, job)
	return nil
}

func (m *MockJobQueue) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	batch := m.ReadBatchResult
	m.ReadBatchResult = nil
	return batch, nil
}

func (m *MockJobQueue) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockJobQueue) MoveToDead(ctx context.Context, jobs []domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadErr != nil {
		return m.DeadErr
	}
	m.DeadJobs = append(m.DeadJobs, jobs...)
	return nil
}

// EnqueuedOfType returns enqueued jobs filtered by type.
func (m *MockJobQueue) EnqueuedOfType(t domain.JobType) []domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, j := range m.Enqueued {
		if j.Type == t {
			out = append(out, j)
		}
	}
	return out
}

// MockDedupStore is an in-memory domain.DedupStore. TTLs are ignored.
type MockDedupStore struct {
	mu     sync.Mutex
	Values map[string]string
	Err    error
}

func NewMockDedupStore() *MockDedupStore {
	return &MockDedupStore{Values: make(map[string]string)}
}

func (m *MockDedupStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Values[key]; ok {
		return false, nil
	}
	m.Values[key] = value
	return true, nil
}

func (m *MockDedupStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Values[key] = value
	return nil
}

func (m *MockDedupStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Values[key], nil
}

func (m *MockDedupStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Values, key)
	return nil
}

// MockMailClient simulates the mail-control API with an in-memory account set.
type MockMailClient struct {
	mu          sync.Mutex
	Mailboxes   map[string]string // email -> password
	CreateCalls int
	DeleteCalls int
	CreateErr   error
	DeleteErr   error
	SetPassErr  error
	ListErr     error
}

func NewMockMailClient() *MockMailClient {
	return &MockMailClient{Mailboxes: make(map[string]string)}
}

func (m *MockMailClient) CreateMailbox(ctx context.Context, email, password string, quotaMB int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.Mailboxes[email]; ok {
		return domain.ErrMailboxExists
	}
	m.Mailboxes[email] = password
	return nil
}

func (m *MockMailClient) DeleteMailbox(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Mailboxes[email]; !ok {
		return domain.ErrMailboxNotFound
	}
	delete(m.Mailboxes, email)
	return nil
}

func (m *MockMailClient) SetPassword(ctx context.Context, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetPassErr != nil {
		return m.SetPassErr
	}
	if _, ok := m.Mailboxes[email]; !ok {
		return domain.ErrMailboxNotFound
	}
	m.Mailboxes[email] = password
	return nil
}

func (m *MockMailClient) ListMailboxes(ctx context.Context) ([]domain.MailboxInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]domain.MailboxInfo, 0, len(m.Mailboxes))
	for email := range m.Mailboxes {
		out = append(out, domain.MailboxInfo{Email: email})
	}
	return out, nil
}

// MockBillingClient records quantity pushes so tests can assert on the last
// absolute value observed per dimension.
type MockBillingClient struct {
	mu             sync.Mutex
	Customers      []string
	Subscriptions  []string
	Quantities     map[string]int // "<subscriptionRef>:<dimension>" -> last pushed quantity
	QuantityPushes []int
	CreateCustErr  error
	CreateSubErr   error
	SetQuantityErr error
}

func NewMockBillingClient() *MockBillingClient {
	return &MockBillingClient{Quantities: make(map[string]int)}
}

func (m *MockBillingClient) CreateCustomer(ctx context.Context, tenantRef, email, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateCustErr != nil {
		return "", m.CreateCustErr
	}
	ref := "cus_" + tenantRef
	m.Customers = append(m.Customers, ref)
	return ref, nil
}

func (m *MockBillingClient) CreateSubscription(ctx context.Context, customerRef string, items map[domain.BillingDimension]int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateSubErr != nil {
		return "", m.CreateSubErr
	}
	ref := strings.Replace(customerRef, "cus_", "sub_", 1)
	m.Subscriptions = append(m.Subscriptions, ref)
	for dim, qty := range items {
		m.Quantities[ref+":"+string(dim)] = qty
	}
	return ref, nil
}

func (m *MockBillingClient) SetLineItemQuantity(ctx context.Context, subscriptionRef string, dimension domain.BillingDimension, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetQuantityErr != nil {
		return m.SetQuantityErr
	}
	m.Quantities[subscriptionRef+":"+string(dimension)] = quantity
	m.QuantityPushes = append(m.QuantityPushes, quantity)
	return nil
}

// LastQuantity returns the last absolute quantity pushed for a subscription
// dimension, or -1 if none was pushed.
func (m *MockBillingClient) LastQuantity(subscriptionRef string, dimension domain.BillingDimension) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.Quantities[subscriptionRef+":"+string(dimension)]; ok {
		return q
	}
	return -1
}

// MockMessagingClient records sent notifications.
type MockMessagingClient struct {
	mu      sync.Mutex
	Sent    []SentMessage
	SendErr error
}

type SentMessage struct {
	To         string
	TemplateID string
	Variables  map[string]string
}

func (m *MockMessagingClient) SendTemplatedMessage(ctx context.Context, to, templateID string, variables map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, TemplateID: templateID, Variables: variables})
	return nil
}
