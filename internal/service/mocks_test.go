package service

import (
	"context"
	"errors"
	"time"

	"donation-service/internal/domain"
	"donation-service/internal/payments"
	"donation-service/internal/repository"
)

// Common test errors
var (
	ErrMockGateway = errors.New("mock gateway error")
	ErrMockStore   = errors.New("mock store error")
	ErrMockMailer  = errors.New("mock mailer error")
	ErrMockPublish = errors.New("mock publish error")
)

// MockPaymentGateway implements PaymentGateway for testing
type MockPaymentGateway struct {
	CreateIntentFunc func(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error)
	CallCount        int
	LastRequest      payments.IntentRequest
}

func (m *MockPaymentGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	m.CallCount++
	m.LastRequest = req
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	return &payments.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

// MockDonationRepo implements repository.DonationRepository for testing
type MockDonationRepo struct {
	Donations map[string]*domain.Donation
	ByIntent  map[string]*domain.Donation

	CreateCalls      int
	SetReceiptCalls  int
	MarkSentCalls    int
	LastReceiptNum   string
	LastReceiptURL   string
}

func NewMockDonationRepo() *MockDonationRepo {
	return &MockDonationRepo{
		Donations: make(map[string]*domain.Donation),
		ByIntent:  make(map[string]*domain.Donation),
	}
}

func (m *MockDonationRepo) Create(ctx context.Context, d *domain.Donation) error {
	m.CreateCalls++
	m.Donations[d.ID] = d
	m.ByIntent[d.PaymentIntentID] = d
	return nil
}

func (m *MockDonationRepo) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	if d, ok := m.Donations[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockDonationRepo) GetByPaymentIntentID(ctx context.Context, piID string) (*domain.Donation, error) {
	if d, ok := m.ByIntent[piID]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockDonationRepo) SetReceipt(ctx context.Context, id, number, url string, at time.Time) error {
	m.SetReceiptCalls++
	m.LastReceiptNum = number
	m.LastReceiptURL = url
	if d, ok := m.Donations[id]; ok {
		d.ReceiptNumber.String, d.ReceiptNumber.Valid = number, true
		d.ReceiptURL.String, d.ReceiptURL.Valid = url, true
		d.ReceiptGenerated = true
		return nil
	}
	return repository.ErrNotFound
}

func (m *MockDonationRepo) MarkReceiptSent(ctx context.Context, id string, at time.Time) error {
	m.MarkSentCalls++
	if d, ok := m.Donations[id]; ok {
		d.ReceiptSent = true
		return nil
	}
	return repository.ErrNotFound
}

// MockStoryRepo implements repository.StoryRepository for testing
type MockStoryRepo struct {
	Stories     map[string]*domain.Story
	CreateCalls int
	StatusCalls int
	LastStatus  domain.StoryStatus
}

func NewMockStoryRepo() *MockStoryRepo {
	return &MockStoryRepo{Stories: make(map[string]*domain.Story)}
}

func (m *MockStoryRepo) Create(ctx context.Context, s *domain.Story) error {
	m.CreateCalls++
	m.Stories[s.ID] = s
	return nil
}

func (m *MockStoryRepo) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	if s, ok := m.Stories[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockStoryRepo) Update(ctx context.Context, id, title, description string, goal int64) error {
	s, ok := m.Stories[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Title, s.Description, s.GoalAmount = title, description, goal
	return nil
}

func (m *MockStoryRepo) SetStatus(ctx context.Context, id string, status domain.StoryStatus) error {
	m.StatusCalls++
	m.LastStatus = status
	s, ok := m.Stories[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	return nil
}

// MockUserRepo implements repository.UserRepository for testing
type MockUserRepo struct {
	Users map[string]*domain.User
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{Users: make(map[string]*domain.User)}
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := m.Users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

// FakeSettlementRepo mimics the ledger + status-guard semantics of the
// Postgres implementation so idempotency can be asserted end to end.
type FakeSettlementRepo struct {
	Ledger        map[string]bool
	Applied       int
	Failed        int
	StoryRaised   int64
	NGOReceived   int64
	ApplyErr      error
	LastReason    string
}

func NewFakeSettlementRepo() *FakeSettlementRepo {
	return &FakeSettlementRepo{Ledger: make(map[string]bool)}
}

func (f *FakeSettlementRepo) ApplySettlement(ctx context.Context, eventID string, d *domain.Donation, paidAt time.Time) error {
	if f.ApplyErr != nil {
		return f.ApplyErr
	}
	if f.Ledger[eventID] {
		return repository.ErrAlreadyProcessed
	}
	if d.Status != domain.DonationPending {
		return repository.ErrAlreadyProcessed
	}
	f.Ledger[eventID] = true
	d.Status = domain.DonationSucceeded
	d.PaidAt.Time, d.PaidAt.Valid = paidAt, true
	f.Applied++
	f.StoryRaised += d.Amount
	f.NGOReceived += d.NGOAmount
	return nil
}

func (f *FakeSettlementRepo) ApplyFailure(ctx context.Context, eventID, donationID, reason string) error {
	if f.Ledger[eventID] {
		return repository.ErrAlreadyProcessed
	}
	f.Ledger[eventID] = true
	f.Failed++
	f.LastReason = reason
	return nil
}

// MockPublisher implements publisher.SettledPublisher for testing
type MockPublisher struct {
	PublishFunc func(ctx context.Context, event domain.SettledEvent) error
	CallCount   int
	LastEvent   domain.SettledEvent
}

func (m *MockPublisher) PublishSettled(ctx context.Context, event domain.SettledEvent) error {
	m.CallCount++
	m.LastEvent = event
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

// MockObjectStore implements storage.ObjectStore for testing
type MockObjectStore struct {
	PutFunc   func(ctx context.Context, key string, data []byte, contentType string) (string, error)
	CallCount int
	LastKey   string
	LastType  string
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.CallCount++
	m.LastKey = key
	m.LastType = contentType
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, data, contentType)
	}
	return "https://receipts.example.com/" + key, nil
}

// MockEmailSender implements sender.EmailSender for testing
type MockEmailSender struct {
	SendFunc    func(ctx context.Context, to, subject, body string) error
	CallCount   int
	LastTo      string
	LastSubject string
	LastBody    string
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	m.CallCount++
	m.LastTo = to
	m.LastSubject = subject
	m.LastBody = body
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return nil
}
