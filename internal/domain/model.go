package domain

import (
	"database/sql"
	"time"
)

// All monetary amounts are integer minor currency units (agorot).

const (
	// MinimumDonation is the smallest accepted donation, in minor units.
	MinimumDonation int64 = 500

	DefaultCurrency = "ILS"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationSucceeded DonationStatus = "succeeded"
	DonationFailed    DonationStatus = "failed"
)

type StoryStatus string

const (
	StoryPending  StoryStatus = "pending"
	StoryActive   StoryStatus = "active"
	StoryRejected StoryStatus = "rejected"
)

// Donation is the central settlement record. It is created pending when a
// payment intent is requested and moved to exactly one terminal status by
// the webhook processor.
type Donation struct {
	ID              string
	UserID          string
	UserEmail       sql.NullString
	UserName        sql.NullString
	StoryID         string
	StoryTitle      string
	NGOID           string
	NGOName         string
	Amount          int64
	PlatformFee     int64
	NGOAmount       int64
	Currency        string
	Status          DonationStatus
	Message         sql.NullString
	IsAnonymous     bool
	PaymentIntentID string
	FailureReason   sql.NullString

	ReceiptNumber      sql.NullString
	ReceiptURL         sql.NullString
	ReceiptGenerated   bool
	ReceiptGeneratedAt sql.NullTime
	ReceiptSent        bool
	ReceiptSentAt      sql.NullTime

	CreatedAt time.Time
	PaidAt    sql.NullTime
}

type Story struct {
	ID            string
	NGOID         string
	NGOName       string
	Title         string
	Description   string
	Status        StoryStatus
	GoalAmount    int64
	RaisedAmount  int64
	DonationCount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type User struct {
	ID            string
	Email         sql.NullString
	DisplayName   sql.NullString
	TotalDonated  int64
	DonationCount int64
}

type NGO struct {
	ID                     string
	Name                   string
	TotalDonationsReceived int64
	TotalDonors            int64
}

// SettledEvent is the message published after a settlement transaction
// commits; the receipt pipeline consumes it.
type SettledEvent struct {
	DonationID string `json:"donation_id"`
	EventID    string `json:"event_id"`
	Amount     int64  `json:"amount"`
	NGOAmount  int64  `json:"ngo_amount"`
	SettledAt  string `json:"settled_at"`
}

// ProcessedEvent is one row of the webhook idempotency ledger.
type ProcessedEvent struct {
	EventID     string
	DonationID  string
	EventType   string
	ProcessedAt time.Time
}
