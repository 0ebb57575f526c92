// Package payment creates checkout sessions with the payment processor and
// verifies its webhook deliveries.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ProductName is the line item shown on the checkout page.
const ProductName = "Premium Feature Access"

// Webhook event types acted on by the payment service.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventCheckoutAsyncFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired     = "checkout.session.expired"
	EventPaymentFailed       = "payment_intent.payment_failed"
)

// ErrInvalidSignature is returned by ParseWebhook for payloads that do not
// carry a valid signature.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutRequest describes a premium purchase.
type CheckoutRequest struct {
	UserID      uint
	Product     string
	AmountCents int64
}

// CheckoutSession is the processor's handle on a started checkout.
type CheckoutSession struct {
	ID       string
	URL      string
	Currency string
}

// WebhookEvent is the part of a processor event the service needs.
type WebhookEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	UserID          uint
	Product         string
	AmountTotal     int64
	Currency        string
}

// Processor is the payment processor seen by the service layer.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// StripeProcessor implements Processor with Stripe Checkout.
type StripeProcessor struct {
	sessions      session.Client
	webhookSecret string
	frontendURL   string
}

// NewStripeProcessor creates a processor using secretKey for API calls.
// backend may be nil to use Stripe's default API backend.
func NewStripeProcessor(secretKey, webhookSecret, frontendURL string, backend stripe.Backend) *StripeProcessor {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeProcessor{
		sessions:      session.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
	}
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("create checkout session: amount must be positive")
	}
	user := strconv.FormatUint(uint64(req.UserID), 10)
	metadata := map[string]string{"product": req.Product, "user": user}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ProductName),
				},
				UnitAmount: stripe.Int64(req.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
		// Copied onto the payment intent so failure events can be attributed.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(p.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.frontendURL + "/cancel"),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL, Currency: string(stripe.CurrencyUSD)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// session or payment intent the event refers to.
func (p *StripeProcessor) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
		out.AmountTotal = s.AmountTotal
		out.Currency = string(s.Currency)
		if s.PaymentIntent != nil {
			out.PaymentIntentID = s.PaymentIntent.ID
		}
		out.fillMetadata(s.Metadata)
	case EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentIntentID = pi.ID
		out.AmountTotal = pi.Amount
		out.Currency = string(pi.Currency)
		out.SessionID = pi.Metadata["session_id"]
		out.fillMetadata(pi.Metadata)
	}
	return out, nil
}

func (e *WebhookEvent) fillMetadata(md map[string]string) {
	e.Product = md["product"]
	if id, err := strconv.ParseUint(md["user"], 10, 32); err == nil {
		e.UserID = uint(id)
	}
}
