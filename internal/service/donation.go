package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/apperr"
	"donation-service/internal/domain"
	"donation-service/internal/fees"
	"donation-service/internal/identity"
	"donation-service/internal/payments"
	"donation-service/internal/repository"
	"donation-service/internal/validator"
)

// PaymentGateway is the slice of the payment processor the initiator uses.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error)
}

// IntentRequest is a donor's request to give toward a story.
type IntentRequest struct {
	StoryID     string `json:"storyId"`
	Amount      int64  `json:"amount"`
	Message     string `json:"message"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// IntentResult carries the client-side confirmation handle back to the donor.
type IntentResult struct {
	ClientSecret string `json:"clientSecret"`
	DonationID   string `json:"donationId"`
}

// DonationService creates payment intents and their pending donation records.
type DonationService struct {
	gateway   PaymentGateway
	donations repository.DonationRepository
	stories   repository.StoryRepository
	users     repository.UserRepository
}

func NewDonationService(
	gateway PaymentGateway,
	donations repository.DonationRepository,
	stories repository.StoryRepository,
	users repository.UserRepository,
) *DonationService {
	return &DonationService{gateway: gateway, donations: donations, stories: stories, users: users}
}

// CreateIntent validates the request, creates the processor-side intent, and
// persists the pending donation. The processor call comes first: a failure
// there must leave no donation row, while a donation row without anything
// after it is the audit anchor the webhook processor looks up later.
func (s *DonationService) CreateIntent(ctx context.Context, caller *identity.Caller, req IntentRequest) (*IntentResult, error) {
	if err := validator.ValidateUserID(caller.UserID); err != nil {
		return nil, apperr.ErrUnauthenticated.WithMessage(err.Error())
	}
	if err := validator.ValidateStoryID(req.StoryID); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage(err.Error())
	}
	if err := validator.ValidateAmount(req.Amount); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage("Amount must be at least 500 agorot")
	}
	if err := validator.ValidateMessage(req.Message); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	story, err := s.stories.GetByID(ctx, req.StoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrNotFound.WithMessage("Story not found")
	}
	if err != nil {
		return nil, err
	}
	if story.Status != domain.StoryActive {
		return nil, apperr.ErrInvalidState.WithMessage("Story is not active")
	}

	platformFee := fees.PlatformFee(req.Amount)
	ngoAmount := fees.NGOAmount(req.Amount)

	log.WithFields(log.Fields{
		"user_id":      caller.UserID,
		"story_id":     req.StoryID,
		"amount":       req.Amount,
		"platform_fee": platformFee,
		"ngo_amount":   ngoAmount,
	}).Info("Creating payment intent")

	intent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:      req.Amount,
		Currency:    "ils",
		Description: "Donation to " + story.Title,
		UserID:      caller.UserID,
		StoryID:     story.ID,
		NGOID:       story.NGOID,
		PlatformFee: platformFee,
		NGOAmount:   ngoAmount,
	})
	if err != nil {
		return nil, err
	}

	donation := &domain.Donation{
		ID:              uuid.NewString(),
		UserID:          caller.UserID,
		StoryID:         story.ID,
		StoryTitle:      story.Title,
		NGOID:           story.NGOID,
		NGOName:         story.NGOName,
		Amount:          req.Amount,
		PlatformFee:     platformFee,
		NGOAmount:       ngoAmount,
		Currency:        domain.DefaultCurrency,
		Status:          domain.DonationPending,
		IsAnonymous:     req.IsAnonymous,
		PaymentIntentID: intent.ID,
		CreatedAt:       time.Now().UTC(),
	}
	if req.Message != "" {
		donation.Message = sql.NullString{String: req.Message, Valid: true}
	}

	// Denormalize donor details for the receipt; the users table may lag
	// behind the identity provider, so fill gaps from the verified token.
	if user, err := s.users.GetByID(ctx, caller.UserID); err == nil {
		donation.UserEmail = user.Email
		if !req.IsAnonymous {
			donation.UserName = user.DisplayName
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if !donation.UserEmail.Valid && caller.Email != "" {
		donation.UserEmail = sql.NullString{String: caller.Email, Valid: true}
	}
	if !req.IsAnonymous && !donation.UserName.Valid && caller.Name != "" {
		donation.UserName = sql.NullString{String: caller.Name, Valid: true}
	}

	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"donation_id":       donation.ID,
		"payment_intent_id": intent.ID,
	}).Info("Payment intent created")

	return &IntentResult{ClientSecret: intent.ClientSecret, DonationID: donation.ID}, nil
}
