package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the idempotency ledger for incoming webhook deliveries.
// The (provider, provider_event_id) pair is unique; a redelivered event
// loads the stored row instead of inserting a second one.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	SaleRef         string         `json:"sale_ref" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
	EventTypeRefunded          = "refunded"
)

// PaymentEvent is the canonical event parsed out of a provider webhook.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string

	// SaleRef identifies the sale on the provider side (the checkout
	// session for completed sales, the charge for refunds).
	SaleRef string
	Type    string

	Email                string
	AmountCents          int64
	DiscountAppliedCents int64
	Currency             string

	// ReferralCode and UTMCampaign come from the checkout metadata our
	// own purchase flow attaches.
	ReferralCode string
	UTMCampaign  string

	OccurredAt time.Time
	RawPayload []byte
}
