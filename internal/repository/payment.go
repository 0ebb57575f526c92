package repository

import (
	"context"
	"errors"

	"sprout/internal/models"
	"sprout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository persists checkout sessions and their outcome.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	Complete(ctx context.Context, payment *models.Payment) error
	MarkFailed(ctx context.Context, sessionID string) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a new PaymentRepository implementation.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Payment session already recorded")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetBySessionID returns (nil, nil) for an unknown session.
func (r *paymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &payment, nil
}

// Complete marks the session paid and verifies the paying user in one
// transaction. A session unknown to the store is recorded as completed.
func (r *paymentRepository) Complete(ctx context.Context, payment *models.Payment) (err error) {
	ctx, span := observability.StartSpan(ctx, "repository", "payment.complete",
		attribute.String("payment.session_id", payment.SessionID),
		attribute.Int("user.id", int(payment.UserID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	payment.Status = models.PaymentCompleted
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(payment).Error
		if err != nil {
			return err
		}
		res := tx.Model(&models.User{ID: payment.UserID}).Update("is_verified", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundMessage("User not found")
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return models.NewInternalError(err)
	}
	return nil
}

// MarkFailed flags a known session as failed and reports whether it existed.
func (r *paymentRepository) MarkFailed(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("session_id = ?", sessionID).
		Update("status", models.PaymentFailed)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
