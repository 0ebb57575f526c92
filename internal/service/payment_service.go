package service

import (
	"context"
	"errors"
	"math"

	"sprout/internal/cache"
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/observability"
	"sprout/internal/payment"
	"sprout/internal/policy"
	"sprout/internal/repository"
	"sprout/internal/validation"
)

// PaymentService sells premium access through the payment processor.
type PaymentService struct {
	payments  repository.PaymentRepository
	processor payment.Processor
}

// CheckoutInput is the body of a checkout request. Amount is in dollars.
type CheckoutInput struct {
	Amount  float64 `json:"amount" validate:"gt=0,max=10000"`
	Product string  `json:"product" validate:"omitempty,max=255"`
}

// CheckoutResult is returned by CreateCheckoutSession.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
}

func NewPaymentService(paymentRepo repository.PaymentRepository, processor payment.Processor) *PaymentService {
	return &PaymentService{payments: paymentRepo, processor: processor}
}

// CreateCheckoutSession starts a checkout for actor and records it as pending.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, actor policy.Actor, in CheckoutInput) (*CheckoutResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	product := in.Product
	if product == "" {
		product = payment.ProductName
	}
	cents := int64(math.Round(in.Amount * 100))

	session, err := s.processor.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserID:      actor.ID,
		Product:     product,
		AmountCents: cents,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "checkout session creation failed", "user_id", actor.ID, "error", err)
		return nil, models.NewExternalServiceError("Failed to create checkout session", err)
	}

	record := &models.Payment{
		SessionID: session.ID,
		UserID:    actor.ID,
		Product:   product,
		Amount:    cents,
		Currency:  session.Currency,
		Status:    models.PaymentPending,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		// The session exists at the processor; the webhook will still
		// record it on completion.
		middleware.Logger.ErrorContext(ctx, "failed to record pending payment", "session_id", session.ID, "error", err)
	}
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// HandleWebhook verifies and applies one processor event.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "webhook signature verification failed", "error", err)
		if errors.Is(err, payment.ErrInvalidSignature) {
			return models.NewValidationError("Webhook Error: invalid signature")
		}
		return models.NewValidationError("Webhook Error: malformed event")
	}
	observability.PaymentEventsTotal.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case payment.EventCheckoutCompleted:
		if ev.UserID == 0 {
			middleware.Logger.WarnContext(ctx, "completed session without user metadata", "session_id", ev.SessionID)
			return nil
		}
		record := &models.Payment{
			SessionID: ev.SessionID,
			UserID:    ev.UserID,
			Product:   ev.Product,
			Amount:    ev.AmountTotal,
			Currency:  ev.Currency,
		}
		if err := s.payments.Complete(ctx, record); err != nil {
			return err
		}
		cache.InvalidateProfiles(ctx, ev.UserID)
		middleware.Logger.InfoContext(ctx, "payment successful", "session_id", ev.SessionID, "user_id", ev.UserID, "product", ev.Product)
	case payment.EventPaymentFailed, payment.EventCheckoutAsyncFailed, payment.EventCheckoutExpired:
		known := false
		if ev.SessionID != "" {
			if known, err = s.payments.MarkFailed(ctx, ev.SessionID); err != nil {
				return err
			}
		}
		middleware.Logger.WarnContext(ctx, "payment failed",
			"payment_intent", ev.PaymentIntentID, "session_id", ev.SessionID, "user_id", ev.UserID, "recorded", known)
	default:
		middleware.Logger.InfoContext(ctx, "unhandled webhook event", "type", ev.Type, "event_id", ev.ID)
	}
	return nil
}
