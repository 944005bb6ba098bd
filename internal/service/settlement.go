package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"donation-service/internal/domain"
	"donation-service/internal/payments"
	"donation-service/internal/publisher"
	"donation-service/internal/repository"
)

// SettlementService advances donations to their terminal state on verified
// processor events and propagates the effects to the aggregate counters.
type SettlementService struct {
	donations   repository.DonationRepository
	settlements repository.SettlementRepository
	publisher   publisher.SettledPublisher
}

func NewSettlementService(
	donations repository.DonationRepository,
	settlements repository.SettlementRepository,
	pub publisher.SettledPublisher,
) *SettlementService {
	return &SettlementService{donations: donations, settlements: settlements, publisher: pub}
}

// ProcessEvent dispatches a verified webhook event. Unknown event types are
// acknowledged without action. Errors returned here are operational: the
// webhook handler logs them and still acknowledges the delivery.
func (s *SettlementService) ProcessEvent(ctx context.Context, event *payments.PaymentEvent) error {
	switch event.Type {
	case payments.EventPaymentSucceeded:
		return s.handleSucceeded(ctx, event)
	case payments.EventPaymentFailed:
		return s.handleFailed(ctx, event)
	default:
		log.WithField("type", event.Type).Info("Ignoring webhook event type")
		return nil
	}
}

func (s *SettlementService) handleSucceeded(ctx context.Context, event *payments.PaymentEvent) error {
	donation, err := s.donations.GetByPaymentIntentID(ctx, event.PaymentIntentID)
	if errors.Is(err, repository.ErrNotFound) {
		// An intent this platform never issued. Log loudly and ack.
		log.WithFields(log.Fields{
			"payment_intent_id": event.PaymentIntentID,
			"event_id":          event.ID,
		}).Error("No donation found for successful payment intent")
		return nil
	}
	if err != nil {
		return err
	}

	paidAt := time.Now().UTC()
	err = s.settlements.ApplySettlement(ctx, event.ID, donation, paidAt)
	if errors.Is(err, repository.ErrAlreadyProcessed) {
		log.WithFields(log.Fields{
			"donation_id": donation.ID,
			"event_id":    event.ID,
		}).Info("Settlement already applied, skipping redelivered event")
		return nil
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"donation_id": donation.ID,
			"event_id":    event.ID,
		}).Error("Settlement failed, donation left pending for reconciliation")
		return err
	}

	if s.publisher != nil {
		settled := domain.SettledEvent{
			DonationID: donation.ID,
			EventID:    event.ID,
			Amount:     donation.Amount,
			NGOAmount:  donation.NGOAmount,
			SettledAt:  paidAt.Format(time.RFC3339),
		}
		if err := s.publisher.PublishSettled(ctx, settled); err != nil {
			// The settlement is already committed; the receipt can still
			// be issued through the manual endpoint.
			log.WithError(err).WithField("donation_id", donation.ID).
				Error("Failed to publish settled event")
		}
	}

	return nil
}

func (s *SettlementService) handleFailed(ctx context.Context, event *payments.PaymentEvent) error {
	donation, err := s.donations.GetByPaymentIntentID(ctx, event.PaymentIntentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.WithFields(log.Fields{
			"payment_intent_id": event.PaymentIntentID,
			"event_id":          event.ID,
		}).Error("No donation found for failed payment intent")
		return nil
	}
	if err != nil {
		return err
	}

	reason := event.FailureMessage
	if reason == "" {
		reason = "Payment failed"
	}

	err = s.settlements.ApplyFailure(ctx, event.ID, donation.ID, reason)
	if errors.Is(err, repository.ErrAlreadyProcessed) {
		log.WithFields(log.Fields{
			"donation_id": donation.ID,
			"event_id":    event.ID,
		}).Info("Failure already recorded, skipping redelivered event")
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"donation_id": donation.ID,
		"reason":      reason,
	}).Info("Donation marked failed")
	return nil
}
