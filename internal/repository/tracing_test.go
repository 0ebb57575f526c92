package repository

import (
	"context"
	"testing"

	"sprout/internal/models"
	"sprout/internal/observability"
	"sprout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans routes observability.Tracer into an in-memory recorder for
// the duration of t.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := observability.Tracer
	observability.Tracer = tp.Tracer("repository-test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTransactionsEmitSpans(t *testing.T) {
	recorder := recordSpans(t)
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	posts := NewPostRepository(db)
	social := NewSocialRepository(db)
	payments := NewPaymentRepository(db)

	alice := testutil.MustCreateUser(t, db, "Alice")
	bob := testutil.MustCreateUser(t, db, "Bob")
	post := testutil.MustCreatePost(t, db, alice, "Compost", models.CategoryVegetables)

	_, err := social.ToggleFollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = social.ToggleFavourite(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	require.NoError(t, payments.Complete(ctx, &models.Payment{SessionID: "cs_span", UserID: bob.ID, Amount: 500, Currency: "usd"}))
	require.NoError(t, posts.Delete(ctx, post.ID))

	err = posts.Delete(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Error(t, payments.Complete(ctx, &models.Payment{SessionID: "cs_orphan", UserID: 9999, Amount: 500, Currency: "usd"}))

	ended := recorder.Ended()
	names := make([]string, 0, len(ended))
	for _, s := range ended {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"repository.follow.toggle",
		"repository.favourite.toggle",
		"repository.payment.complete",
		"repository.post.delete",
		"repository.post.delete",
		"repository.payment.complete",
	}, names)

	for i, s := range ended {
		if i < 4 {
			assert.Equal(t, codes.Unset, s.Status().Code, s.Name())
			continue
		}
		assert.Equal(t, codes.Error, s.Status().Code, s.Name())
		assert.NotEmpty(t, s.Events(), "error should be recorded on %s", s.Name())
	}
}
