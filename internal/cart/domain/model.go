package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Stage string

const (
	StageStarted   Stage = "started"
	StageCheckout  Stage = "checkout"
	StageCompleted Stage = "completed"
)

// CartSession tracks one visitor's progress through the purchase flow.
// The (email, utm_campaign) pair is unique; repeated visits bump the same
// row rather than creating new ones.
type CartSession struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Email       string       `gorm:"type:text;not null;uniqueIndex:idx_cart_email_campaign" json:"email"`
	UTMCampaign string       `gorm:"type:text;not null;uniqueIndex:idx_cart_email_campaign" json:"utm_campaign"`
	SaleRef     string       `gorm:"type:text" json:"sale_ref,omitempty"`
	Stage       Stage        `gorm:"type:text;not null;default:'started'" json:"stage"`

	ReminderCount  int        `gorm:"not null;default:0" json:"reminder_count"`
	LastSeenAt     time.Time  `gorm:"not null" json:"last_seen_at"`
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
	RecoveredAt    *time.Time `json:"recovered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CartSession) TableName() string { return "cart_sessions" }
