package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"donation-service/internal/apperr"
	"donation-service/internal/domain"
)

func settledDonation() *domain.Donation {
	return &domain.Donation{
		ID:         "don-1",
		UserID:     "user-1",
		UserEmail:  sql.NullString{String: "dana@example.com", Valid: true},
		UserName:   sql.NullString{String: "Dana Levi", Valid: true},
		StoryTitle: "School supplies for Ofakim",
		NGOName:    "Hand in Hand",
		Amount:     10000,
		NGOAmount:  9800,
		Currency:   "ILS",
		Status:     domain.DonationSucceeded,
		PaidAt:     sql.NullTime{Time: time.Now(), Valid: true},
	}
}

func newReceiptService() (*ReceiptService, *MockDonationRepo, *MockObjectStore, *MockEmailSender) {
	donations := NewMockDonationRepo()
	store := &MockObjectStore{}
	mailer := &MockEmailSender{}
	svc := NewReceiptService(donations, store, mailer)
	return svc, donations, store, mailer
}

func TestIssueReceipt(t *testing.T) {
	svc, donations, store, _ := newReceiptService()
	d := settledDonation()
	donations.Donations[d.ID] = d

	result, err := svc.Issue(context.Background(), "don-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if !strings.HasPrefix(result.ReceiptNumber, "RCP-") {
		t.Errorf("receipt number = %q, want RCP- prefix", result.ReceiptNumber)
	}
	if store.LastType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", store.LastType)
	}
	if want := "receipts/" + result.ReceiptNumber + ".pdf"; store.LastKey != want {
		t.Errorf("object key = %q, want %q", store.LastKey, want)
	}
	if donations.SetReceiptCalls != 1 {
		t.Errorf("SetReceipt called %d times, want 1", donations.SetReceiptCalls)
	}
	if !d.ReceiptGenerated || !d.ReceiptURL.Valid {
		t.Error("receipt fields not recorded on donation")
	}
}

func TestIssueReceiptAlreadyGenerated(t *testing.T) {
	svc, donations, store, _ := newReceiptService()
	d := settledDonation()
	d.ReceiptGenerated = true
	d.ReceiptNumber = sql.NullString{String: "RCP-2026-17000000000001111", Valid: true}
	d.ReceiptURL = sql.NullString{String: "https://receipts.example.com/existing.pdf", Valid: true}
	donations.Donations[d.ID] = d

	result, err := svc.Issue(context.Background(), "don-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if result.ReceiptNumber != "RCP-2026-17000000000001111" {
		t.Errorf("re-issue minted a new receipt number %q", result.ReceiptNumber)
	}
	if store.CallCount != 0 {
		t.Error("artifact re-uploaded for an already-issued receipt")
	}
	if donations.SetReceiptCalls != 0 {
		t.Error("donation mutated for an already-issued receipt")
	}
}

func TestIssueReceiptDonationNotFound(t *testing.T) {
	svc, _, _, _ := newReceiptService()

	_, err := svc.Issue(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestIssueReceiptStoreFailure(t *testing.T) {
	svc, donations, store, _ := newReceiptService()
	d := settledDonation()
	donations.Donations[d.ID] = d
	store.PutFunc = func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
		return "", ErrMockStore
	}

	_, err := svc.Issue(context.Background(), "don-1")
	if !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Fatalf("err = %v, want UpstreamFailure", err)
	}
	if donations.SetReceiptCalls != 0 {
		t.Error("receipt recorded despite upload failure")
	}
}

func TestSendReceipt(t *testing.T) {
	svc, donations, _, mailer := newReceiptService()
	d := settledDonation()
	d.ReceiptGenerated = true
	d.ReceiptNumber = sql.NullString{String: "RCP-2026-17000000000001111", Valid: true}
	d.ReceiptURL = sql.NullString{String: "https://receipts.example.com/r.pdf", Valid: true}
	donations.Donations[d.ID] = d

	if err := svc.Send(context.Background(), "don-1"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if mailer.LastTo != "dana@example.com" {
		t.Errorf("email sent to %q", mailer.LastTo)
	}
	if !strings.Contains(mailer.LastSubject, "RCP-2026-17000000000001111") {
		t.Errorf("subject %q does not carry the receipt number", mailer.LastSubject)
	}
	if !strings.Contains(mailer.LastBody, "https://receipts.example.com/r.pdf") {
		t.Error("email body does not link the receipt artifact")
	}
	if !strings.Contains(mailer.LastBody, "ILS 100.00") {
		t.Error("email body does not state the donated amount")
	}
	if donations.MarkSentCalls != 1 {
		t.Errorf("MarkReceiptSent called %d times, want 1", donations.MarkSentCalls)
	}
}

func TestSendReceiptBeforeIssue(t *testing.T) {
	svc, donations, _, mailer := newReceiptService()
	d := settledDonation()
	donations.Donations[d.ID] = d

	err := svc.Send(context.Background(), "don-1")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want InvalidState", err)
	}
	if mailer.CallCount != 0 {
		t.Error("email sent before the receipt was issued")
	}
}

func TestSendReceiptRelayFailureLeavesDonationRetryable(t *testing.T) {
	svc, donations, _, mailer := newReceiptService()
	d := settledDonation()
	d.ReceiptGenerated = true
	d.ReceiptNumber = sql.NullString{String: "RCP-2026-17000000000001111", Valid: true}
	d.ReceiptURL = sql.NullString{String: "https://receipts.example.com/r.pdf", Valid: true}
	donations.Donations[d.ID] = d
	mailer.SendFunc = func(ctx context.Context, to, subject, body string) error {
		return ErrMockMailer
	}

	err := svc.Send(context.Background(), "don-1")
	if !errors.Is(err, apperr.ErrUpstreamFailure) {
		t.Fatalf("err = %v, want UpstreamFailure", err)
	}
	if mailer.CallCount != 3 {
		t.Errorf("mailer attempted %d times, want 3", mailer.CallCount)
	}
	if donations.MarkSentCalls != 0 {
		t.Error("donation marked sent despite relay failure")
	}
	if d.ReceiptSent {
		t.Error("receipt_sent flag mutated on failure")
	}
}
