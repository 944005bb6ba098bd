package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/apperr"
	"donation-service/internal/domain"
	"donation-service/internal/identity"
	"donation-service/internal/payments"
	"donation-service/internal/service"
)

const callerKey = "caller"

// DonationInitiator creates payment intents for authenticated donors.
type DonationInitiator interface {
	CreateIntent(ctx context.Context, caller *identity.Caller, req service.IntentRequest) (*service.IntentResult, error)
}

// WebhookVerifier authenticates inbound processor deliveries.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signature string) (*payments.PaymentEvent, error)
}

// EventProcessor settles donations from verified processor events.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *payments.PaymentEvent) error
}

// StoryManager is the admin/NGO story surface.
type StoryManager interface {
	Create(ctx context.Context, caller *identity.Caller, req service.StoryRequest) (*domain.Story, error)
	Update(ctx context.Context, caller *identity.Caller, storyID string, req service.StoryRequest) error
	Approve(ctx context.Context, caller *identity.Caller, storyID string, approve bool) error
}

// Server wires the HTTP routes to the services.
type Server struct {
	verifier   identity.Verifier
	donations  DonationInitiator
	webhooks   WebhookVerifier
	settlement EventProcessor
	receipts   ReceiptPipeline
	stories    StoryManager
}

func NewServer(
	verifier identity.Verifier,
	donations DonationInitiator,
	webhooks WebhookVerifier,
	settlement EventProcessor,
	receipts ReceiptPipeline,
	stories StoryManager,
) *Server {
	return &Server{
		verifier:   verifier,
		donations:  donations,
		webhooks:   webhooks,
		settlement: settlement,
		receipts:   receipts,
		stories:    stories,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.POST("/webhooks/stripe", s.handleStripeWebhook)

	api := r.Group("/api")
	{
		api.POST("/receipts/generate", s.handleGenerateReceipt)
		api.POST("/receipts/send", s.handleSendReceipt)

		authed := api.Group("", s.requireAuth())
		{
			authed.POST("/donations/intent", s.handleCreateIntent)
			authed.POST("/stories", s.handleCreateStory)
			authed.PUT("/stories/:id", s.handleUpdateStory)
			authed.POST("/stories/:id/approve", s.handleApproveStory)
		}
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireAuth verifies the bearer credential and stashes the caller.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(c, apperr.ErrUnauthenticated)
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		caller, err := s.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) *identity.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(*identity.Caller)
	return caller
}

func (s *Server) handleCreateIntent(c *gin.Context) {
	var req service.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("Invalid request body"))
		return
	}

	result, err := s.donations.CreateIntent(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"clientSecret": result.ClientSecret,
		"donationId":   result.DonationID,
	})
}

// handleStripeWebhook acknowledges every verified delivery with 200 even
// when processing fails, so the processor does not hammer us with
// redeliveries for errors retries cannot fix. Only a signature mismatch is
// bounced with 400.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("Unreadable payload"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		respondError(c, apperr.ErrSignatureInvalid.WithMessage("Missing Stripe-Signature header"))
		return
	}

	event, err := s.webhooks.VerifyEvent(payload, signature)
	if err != nil {
		log.WithError(err).Error("Webhook signature verification failed")
		respondError(c, apperr.ErrSignatureInvalid)
		return
	}

	log.WithFields(log.Fields{
		"type":     event.Type,
		"event_id": event.ID,
	}).Info("Received Stripe webhook")

	if err := s.settlement.ProcessEvent(c.Request.Context(), event); err != nil {
		log.WithError(err).WithField("event_id", event.ID).Error("Error processing webhook event")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type receiptRequest struct {
	DonationID string `json:"donationId"`
}

func (s *Server) handleGenerateReceipt(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DonationID == "" {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("donationId is required"))
		return
	}

	result, err := s.receipts.Issue(c.Request.Context(), req.DonationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"receiptNumber": result.ReceiptNumber,
		"receiptUrl":    result.ReceiptURL,
	})
}

func (s *Server) handleSendReceipt(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DonationID == "" {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("donationId is required"))
		return
	}

	if err := s.receipts.Send(c.Request.Context(), req.DonationID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent successfully"})
}

func (s *Server) handleCreateStory(c *gin.Context) {
	var req service.StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("Invalid request body"))
		return
	}

	story, err := s.stories.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "storyId": story.ID, "status": story.Status})
}

func (s *Server) handleUpdateStory(c *gin.Context) {
	var req service.StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("Invalid request body"))
		return
	}

	if err := s.stories.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type approveRequest struct {
	Approve *bool `json:"approve"`
}

func (s *Server) handleApproveStory(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approve == nil {
		respondError(c, apperr.ErrInvalidArgument.WithMessage("approve flag is required"))
		return
	}

	if err := s.stories.Approve(c.Request.Context(), callerFrom(c), c.Param("id"), *req.Approve); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func respondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    apperr.CodeOf(err),
			"message": apperr.MessageOf(err),
		},
	})
}
