package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"ce-marketplace/internal/payments"
	"ce-marketplace/internal/services"
)

type WebhookHandler struct {
	stripeClient      *payments.StripeClient
	submissionService *services.SubmissionService
	logger            *zap.Logger
}

func NewWebhookHandler(stripeClient *payments.StripeClient, submissionService *services.SubmissionService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripeClient:      stripeClient,
		submissionService: submissionService,
		logger:            logger,
	}
}

// HandleStripeWebhook verifies and applies payment provider events. The
// signature check runs against the raw body, before any parsing.
// POST /api/webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := h.stripeClient.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.logger.Error("failed to parse checkout session event", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
			return
		}

		var paymentRef string
		if session.PaymentIntent != nil {
			paymentRef = session.PaymentIntent.ID
		}

		err := h.submissionService.ConfirmPayment(c.Request.Context(), session.Metadata["submission_id"], paymentRef)
		if err != nil {
			if errors.Is(err, services.ErrMissingCorrelationID) {
				h.logger.Warn("checkout session completed without submission id",
					zap.String("session_id", session.ID))
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if errors.Is(err, services.ErrSubmissionNotFound) {
				// The draft was cancelled or swept before the event landed.
				h.logger.Warn("payment confirmation for unknown submission",
					zap.String("session_id", session.ID))
				c.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			h.logger.Error("failed to apply payment confirmation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
			return
		}

	default:
		// Unhandled event types are acknowledged so the provider stops
		// retrying them.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
