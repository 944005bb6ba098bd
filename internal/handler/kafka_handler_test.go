package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"donation-service/internal/apperr"
	"donation-service/internal/domain"
	"donation-service/internal/service"
)

func settledEventBytes(t *testing.T, donationID string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.SettledEvent{
		DonationID: donationID,
		EventID:    "evt_1",
		Amount:     10000,
		NGOAmount:  9800,
		SettledAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshaling event: %v", err)
	}
	return data
}

func TestHandleSettledMessage(t *testing.T) {
	receipts := &mockReceipts{
		IssueResult: &service.IssueResult{ReceiptNumber: "RCP-2026-1", ReceiptURL: "https://r.example.com/1.pdf"},
	}
	h := NewSettledHandler(receipts)

	if err := h.HandleMessage(context.Background(), settledEventBytes(t, "don-1")); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if receipts.IssueCalls != 1 {
		t.Errorf("Issue called %d times, want 1", receipts.IssueCalls)
	}
	if receipts.SendCalls != 1 {
		t.Errorf("Send called %d times, want 1", receipts.SendCalls)
	}
	if receipts.LastID != "don-1" {
		t.Errorf("pipeline received donation id %q", receipts.LastID)
	}
}

func TestHandleSettledMessageBadJSON(t *testing.T) {
	receipts := &mockReceipts{}
	h := NewSettledHandler(receipts)

	if err := h.HandleMessage(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if receipts.IssueCalls != 0 {
		t.Error("pipeline driven from an unreadable payload")
	}
}

func TestHandleSettledMessageMissingDonationID(t *testing.T) {
	receipts := &mockReceipts{}
	h := NewSettledHandler(receipts)

	if err := h.HandleMessage(context.Background(), []byte(`{"event_id":"evt_1"}`)); err == nil {
		t.Fatal("expected error for event without donation id")
	}
	if receipts.IssueCalls != 0 {
		t.Error("pipeline driven without a donation id")
	}
}

func TestHandleSettledMessageIssueFailure(t *testing.T) {
	receipts := &mockReceipts{IssueErr: apperr.ErrUpstreamFailure}
	h := NewSettledHandler(receipts)

	if err := h.HandleMessage(context.Background(), settledEventBytes(t, "don-1")); err == nil {
		t.Fatal("expected error when issuing fails")
	}
	if receipts.SendCalls != 0 {
		t.Error("email attempted although the receipt was never issued")
	}
}
