package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"donation-service/internal/apperr"
)

// Event types the settlement pipeline reacts to. Everything else is
// acknowledged and ignored.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// IntentRequest describes the charge to create. Metadata fields ride along
// on the intent so the webhook side can attribute the payment.
type IntentRequest struct {
	Amount      int64
	Currency    string
	Description string
	UserID      string
	StoryID     string
	NGOID       string
	PlatformFee int64
	NGOAmount   int64
}

// Intent is the processor-side handle returned to the client.
type Intent struct {
	ID           string
	ClientSecret string
}

// PaymentEvent is a verified webhook event, reduced to the fields the
// settlement processor needs.
type PaymentEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	FailureMessage  string
}

// StripeClient wraps the Stripe SDK behind the two operations the service
// performs: creating payment intents and verifying webhook deliveries.
type StripeClient struct {
	client        *stripe.Client
	webhookSecret string
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		client:        stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

// CreateIntent creates a Stripe PaymentIntent carrying the donation
// attribution metadata.
func (s *StripeClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		Metadata: map[string]string{
			"userId":      req.UserID,
			"storyId":     req.StoryID,
			"ngoId":       req.NGOID,
			"platformFee": strconv.FormatInt(req.PlatformFee, 10),
			"ngoAmount":   strconv.FormatInt(req.NGOAmount, 10),
		},
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, apperr.ErrUpstreamFailure.WithMessage(stripeErr.Msg).Wrap(err)
		}
		return nil, apperr.ErrUpstreamFailure.Wrap(err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyEvent checks the webhook signature and extracts the payment intent
// reference. A signature mismatch is the only error that must bounce the
// delivery with a 400.
func (s *StripeClient) VerifyEvent(payload []byte, signature string) (*PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, apperr.ErrSignatureInvalid.Wrap(err)
	}

	pe := &PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch pe.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment intent payload: %w", err)
		}
		pe.PaymentIntentID = pi.ID
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			pe.FailureMessage = pi.LastPaymentError.Msg
		}
	}

	return pe, nil
}
