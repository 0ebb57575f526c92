package service

import (
	"context"
	"errors"
	"testing"

	"sprout/internal/models"
	"sprout/internal/payment"
	"sprout/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_CreateCheckoutSession(t *testing.T) {
	t.Parallel()

	var gotReq payment.CheckoutRequest
	proc := &processorStub{
		createFn: func(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
			gotReq = req
			return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1", Currency: "usd"}, nil
		},
	}
	var recorded *models.Payment
	payments := noopPaymentRepo()
	payments.createFn = func(_ context.Context, p *models.Payment) error {
		recorded = p
		return nil
	}
	svc := NewPaymentService(payments, proc)

	res, err := svc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{Amount: 19.99})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, int64(1999), gotReq.AmountCents)
	assert.Equal(t, payment.ProductName, gotReq.Product)
	assert.Equal(t, alice.ID, gotReq.UserID)

	require.NotNil(t, recorded)
	assert.Equal(t, models.PaymentPending, recorded.Status)
	assert.Equal(t, "cs_test_1", recorded.SessionID)
}

func TestPaymentService_CreateCheckoutSession_Errors(t *testing.T) {
	t.Parallel()

	called := false
	proc := &processorStub{
		createFn: func(_ context.Context, _ payment.CheckoutRequest) (*payment.CheckoutSession, error) {
			called = true
			return nil, errors.New("card network unavailable")
		},
	}
	svc := NewPaymentService(noopPaymentRepo(), proc)
	ctx := context.Background()

	_, err := svc.CreateCheckoutSession(ctx, alice, CheckoutInput{Amount: 0})
	assertValidationError(t, err)
	_, err = svc.CreateCheckoutSession(ctx, policy.Actor{}, CheckoutInput{Amount: 5})
	assertAppError(t, err, models.CodeUnauthenticated)
	assert.False(t, called)

	_, err = svc.CreateCheckoutSession(ctx, alice, CheckoutInput{Amount: 5})
	appErr := assertAppError(t, err, models.CodeExternalService)
	assert.Equal(t, "Failed to create checkout session", appErr.Message)
}

func TestPaymentService_CreateCheckoutSession_RecordFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	proc := &processorStub{
		createFn: func(_ context.Context, _ payment.CheckoutRequest) (*payment.CheckoutSession, error) {
			return &payment.CheckoutSession{ID: "cs_test_2"}, nil
		},
	}
	payments := noopPaymentRepo()
	payments.createFn = func(_ context.Context, _ *models.Payment) error { return errDB }
	svc := NewPaymentService(payments, proc)

	res, err := svc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", res.SessionID)
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	t.Parallel()

	events := map[string]*payment.WebhookEvent{
		"completed": {Type: payment.EventCheckoutCompleted, SessionID: "cs_1", UserID: 7, Product: "Premium", AmountTotal: 1999, Currency: "usd"},
		"anonymous": {Type: payment.EventCheckoutCompleted, SessionID: "cs_2"},
		"failed":    {Type: payment.EventPaymentFailed, PaymentIntentID: "pi_1"},
		"expired":   {Type: payment.EventCheckoutExpired, SessionID: "cs_3"},
		"other":     {Type: "customer.created", ID: "evt_9"},
	}
	proc := &processorStub{
		parseFn: func(payload []byte, sig string) (*payment.WebhookEvent, error) {
			switch sig {
			case "bad":
				return nil, payment.ErrInvalidSignature
			case "garbled":
				return nil, errors.New("unexpected end of JSON input")
			}
			return events[string(payload)], nil
		},
	}

	var completed []*models.Payment
	var failed []string
	payments := noopPaymentRepo()
	payments.completeFn = func(_ context.Context, p *models.Payment) error {
		completed = append(completed, p)
		return nil
	}
	payments.markFailedFn = func(_ context.Context, sessionID string) (bool, error) {
		failed = append(failed, sessionID)
		return true, nil
	}
	svc := NewPaymentService(payments, proc)
	ctx := context.Background()

	err := svc.HandleWebhook(ctx, []byte("completed"), "bad")
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, "Webhook Error: invalid signature", appErr.Message)

	err = svc.HandleWebhook(ctx, []byte("completed"), "garbled")
	appErr = assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, "Webhook Error: malformed event", appErr.Message)

	for _, name := range []string{"completed", "anonymous", "failed", "expired", "other"} {
		require.NoError(t, svc.HandleWebhook(ctx, []byte(name), "ok"), name)
	}

	require.Len(t, completed, 1)
	assert.Equal(t, "cs_1", completed[0].SessionID)
	assert.Equal(t, uint(7), completed[0].UserID)
	assert.Equal(t, int64(1999), completed[0].Amount)
	assert.Equal(t, []string{"cs_3"}, failed, "a failed intent without a session is only logged")
}

func TestPaymentService_HandleWebhook_StoreFailure(t *testing.T) {
	t.Parallel()

	proc := &processorStub{
		parseFn: func(_ []byte, _ string) (*payment.WebhookEvent, error) {
			return &payment.WebhookEvent{Type: payment.EventCheckoutCompleted, SessionID: "cs_1", UserID: 404}, nil
		},
	}
	payments := noopPaymentRepo()
	payments.completeFn = func(_ context.Context, _ *models.Payment) error {
		return models.NewNotFoundMessage("User not found")
	}
	svc := NewPaymentService(payments, proc)

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "ok")
	assertAppError(t, err, models.CodeNotFound)
}
