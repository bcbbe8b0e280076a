package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type TrackInput struct {
	Email       string `json:"email"`
	UTMCampaign string `json:"utm_campaign"`
	SaleRef     string `json:"sale_ref"`
	Stage       Stage  `json:"stage"`
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, session *CartSession) error
	FindByEmailCampaign(ctx context.Context, db *gorm.DB, email, campaign string) (*CartSession, error)
	MarkRecovered(ctx context.Context, db *gorm.DB, email, saleRef string, at time.Time) (int64, error)
	FindAbandoned(ctx context.Context, db *gorm.DB, seenBefore time.Time, maxReminders int, limit int) ([]*CartSession, error)
	IncrementReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type Service interface {
	// Track upserts the visitor's cart row and bumps last_seen_at.
	Track(ctx context.Context, input TrackInput) (*CartSession, error)

	// MarkRecovered flips every open cart for the email to completed.
	MarkRecovered(ctx context.Context, email, saleRef string) error

	// SendRecoveryReminders emails carts abandoned past the configured
	// delay. Returns the number of reminders sent.
	SendRecoveryReminders(ctx context.Context) (int, error)
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidCampaign = errors.New("invalid_campaign")
	ErrInvalidStage    = errors.New("invalid_stage")
)
