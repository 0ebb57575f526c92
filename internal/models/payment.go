package models

import "time"

// PaymentStatus tracks a checkout session through the processor's webhooks.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records a premium-access checkout session.
type Payment struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	SessionID string        `gorm:"size:255;uniqueIndex;not null" json:"sessionId"`
	UserID    uint          `gorm:"not null;index" json:"userId"`
	Product   string        `gorm:"size:255" json:"product"`
	Amount    int64         `gorm:"not null" json:"amount"`
	Currency  string        `gorm:"size:8;not null" json:"currency"`
	Status    PaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
