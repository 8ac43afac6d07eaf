package payments

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutSession is the redirect target returned by the payment provider.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// StripeClient wraps the hosted checkout and webhook verification APIs.
type StripeClient struct {
	webhookSecret string
}

// NewStripeClient configures the Stripe SDK and returns a client.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	stripe.Key = secretKey
	return &StripeClient{webhookSecret: webhookSecret}
}

// CreateCheckoutSession creates a hosted checkout session for a one-time
// card payment. The metadata is returned untouched on the confirmation
// webhook, which is how the confirmation is correlated back to a
// submission.
func (c *StripeClient) CreateCheckoutSession(
	ctx context.Context,
	amountCents int64,
	description string,
	successURL, cancelURL string,
	metadata map[string]string,
) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("CE Class Listing"),
						Description: stripe.String(description),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ConstructEvent verifies the webhook signature and parses the event.
// Transport-level authentication happens here; the lifecycle engine only
// ever sees already-verified confirmations.
func (c *StripeClient) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
}
