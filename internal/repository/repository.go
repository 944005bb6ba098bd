package repository

import (
	"context"
	"errors"
	"time"

	"donation-service/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed is returned when a settlement is re-applied for an
	// event id already in the ledger, or for a donation already terminal.
	ErrAlreadyProcessed = errors.New("event already processed")
)

// DonationRepository handles donation persistence.
type DonationRepository interface {
	Create(ctx context.Context, d *domain.Donation) error
	GetByID(ctx context.Context, id string) (*domain.Donation, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Donation, error)
	SetReceipt(ctx context.Context, id, receiptNumber, receiptURL string, generatedAt time.Time) error
	MarkReceiptSent(ctx context.Context, id string, sentAt time.Time) error
}

// StoryRepository handles story persistence.
type StoryRepository interface {
	Create(ctx context.Context, s *domain.Story) error
	GetByID(ctx context.Context, id string) (*domain.Story, error)
	Update(ctx context.Context, id, title, description string, goalAmount int64) error
	SetStatus(ctx context.Context, id string, status domain.StoryStatus) error
}

// UserRepository handles donor lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// SettlementRepository applies the terminal transitions of a donation.
// Both operations record the processor event id in the idempotency ledger
// and guard on the donation still being pending, so webhook redelivery is
// a no-op.
type SettlementRepository interface {
	ApplySettlement(ctx context.Context, eventID string, d *domain.Donation, paidAt time.Time) error
	ApplyFailure(ctx context.Context, eventID, donationID, reason string) error
}
