package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"donation-service/internal/apperr"
	"donation-service/internal/receipts"
	"donation-service/internal/repository"
	"donation-service/internal/sender"
	"donation-service/internal/storage"
	"donation-service/internal/validator"
)

// IssueResult reports the receipt artifact for a donation.
type IssueResult struct {
	ReceiptNumber string `json:"receiptNumber"`
	ReceiptURL    string `json:"receiptUrl"`
}

// ReceiptService issues the durable receipt artifact and mails it to the
// donor. Issuing and notifying are separate operations so either can be
// retried on its own.
type ReceiptService struct {
	donations repository.DonationRepository
	store     storage.ObjectStore
	mailer    sender.EmailSender
}

func NewReceiptService(
	donations repository.DonationRepository,
	store storage.ObjectStore,
	mailer sender.EmailSender,
) *ReceiptService {
	return &ReceiptService{donations: donations, store: store, mailer: mailer}
}

// Issue renders and stores the receipt PDF, then records its number and
// location on the donation. An already-issued receipt is returned as-is.
func (s *ReceiptService) Issue(ctx context.Context, donationID string) (*IssueResult, error) {
	if err := validator.ValidateDonationID(donationID); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	donation, err := s.donations.GetByID(ctx, donationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("Donation not found")
	}
	if err != nil {
		return nil, err
	}

	if donation.ReceiptGenerated && donation.ReceiptNumber.Valid && donation.ReceiptURL.Valid {
		log.WithFields(log.Fields{
			"donation_id":    donationID,
			"receipt_number": donation.ReceiptNumber.String,
		}).Info("Receipt already issued, returning existing artifact")
		return &IssueResult{
			ReceiptNumber: donation.ReceiptNumber.String,
			ReceiptURL:    donation.ReceiptURL.String,
		}, nil
	}

	now := time.Now().UTC()
	receiptNumber := receipts.NewReceiptNumber(now)

	pdfData, err := receipts.RenderPDF(donation, receiptNumber, now)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("receipts/%s.pdf", receiptNumber)
	receiptURL, err := s.store.Put(ctx, key, pdfData, "application/pdf")
	if err != nil {
		return nil, apperr.ErrUpstreamFailure.Wrap(err)
	}

	if err := s.donations.SetReceipt(ctx, donationID, receiptNumber, receiptURL, now); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"donation_id":    donationID,
		"receipt_number": receiptNumber,
		"receipt_url":    receiptURL,
	}).Info("Receipt issued")

	return &IssueResult{ReceiptNumber: receiptNumber, ReceiptURL: receiptURL}, nil
}

// Send emails the issued receipt to the donor. The donation is marked
// receipt-sent only after the relay accepts the message, so a relay failure
// leaves the operation safely retryable.
func (s *ReceiptService) Send(ctx context.Context, donationID string) error {
	if err := validator.ValidateDonationID(donationID); err != nil {
		return apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	donation, err := s.donations.GetByID(ctx, donationID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrNotFound.WithMessage("Donation not found")
	}
	if err != nil {
		return err
	}

	if !donation.ReceiptURL.Valid || !donation.ReceiptNumber.Valid {
		return apperr.ErrInvalidState.WithMessage("Receipt not generated yet")
	}
	if !donation.UserEmail.Valid {
		return apperr.ErrInvalidArgument.WithMessage("Donation has no donor email")
	}
	if err := validator.ValidateEmail(donation.UserEmail.String); err != nil {
		return apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	subject := "Donation receipt - " + donation.ReceiptNumber.String
	body := receiptEmailBody(donation)

	// Retry sending email up to 3 times with exponential backoff
	maxAttempts := 3
	delay := 1 * time.Second
	var sendErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendErr = s.mailer.SendEmail(ctx, donation.UserEmail.String, subject, body)
		if sendErr == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{
					"attempt": attempt,
					"email":   donation.UserEmail.String,
				}).Info("Receipt email sent after retry")
			}
			break
		}
		if attempt < maxAttempts {
			log.WithError(sendErr).WithFields(log.Fields{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"email":        donation.UserEmail.String,
			}).Warn("Failed to send receipt email, retrying...")
			time.Sleep(delay)
			delay *= 2
		}
	}
	if sendErr != nil {
		return apperr.ErrUpstreamFailure.WithMessage("Failed to send receipt email").Wrap(sendErr)
	}

	if err := s.donations.MarkReceiptSent(ctx, donationID, time.Now().UTC()); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"donation_id": donationID,
		"email":       donation.UserEmail.String,
	}).Info("Receipt email sent")
	return nil
}
