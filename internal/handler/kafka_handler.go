package handler

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"donation-service/internal/domain"
	"donation-service/internal/service"
)

// ReceiptPipeline is the slice of the receipt service the settled-event
// consumer drives.
type ReceiptPipeline interface {
	Issue(ctx context.Context, donationID string) (*service.IssueResult, error)
	Send(ctx context.Context, donationID string) error
}

type settledHandler struct {
	receipts ReceiptPipeline
}

// NewSettledHandler returns the consumer-side handler that issues and mails
// the receipt for a settled donation. Issue is a no-op for an
// already-issued receipt, so redelivered events are harmless.
func NewSettledHandler(receipts ReceiptPipeline) *settledHandler {
	return &settledHandler{receipts: receipts}
}

func (h *settledHandler) HandleMessage(ctx context.Context, message []byte) error {
	var event domain.SettledEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return fmt.Errorf("failed to unmarshal settled event: %w", err)
	}
	if event.DonationID == "" {
		return fmt.Errorf("settled event carries no donation id")
	}

	logCtx := log.WithFields(log.Fields{
		"donation_id": event.DonationID,
		"event_id":    event.EventID,
	})
	logCtx.Info("Processing settled event for receipt issuance")

	if _, err := h.receipts.Issue(ctx, event.DonationID); err != nil {
		return fmt.Errorf("failed to issue receipt: %w", err)
	}
	if err := h.receipts.Send(ctx, event.DonationID); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}

	logCtx.Info("Receipt issued and emailed")
	return nil
}
