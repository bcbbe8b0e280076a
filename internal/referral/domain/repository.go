package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"gorm.io/gorm"
)

// CodeRepository persists referral codes. The reward calculator and payout
// executor receive it injected; nothing in this package reaches for a
// shared database handle.
type CodeRepository interface {
	Insert(ctx context.Context, db *gorm.DB, code *ReferralCode) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReferralCode, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*ReferralCode, error)

	// ResetPeriod starts a new accrual window: sets period_start_at and
	// zeroes period_reward_paid_cents.
	ResetPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, startAt time.Time) error

	// AddPaidTotals applies one atomic database-side increment to the
	// lifetime, period and pending totals. It must never be implemented as
	// read-modify-write in application code; concurrent conversions for the
	// same code rely on the increment being a single UPDATE.
	AddPaidTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, paidCents, pendingCents int64) error

	IncrementRedemptions(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*ReferralCode, error)
}

// ConversionRepository persists conversion records with upsert semantics on
// the (code_id, sale_ref) pair.
type ConversionRepository interface {
	Upsert(ctx context.Context, db *gorm.DB, conversion *ReferralConversion) error
	FindBySale(ctx context.Context, db *gorm.DB, codeID snowflake.ID, saleRef string) (*ReferralConversion, error)
	CountByCode(ctx context.Context, db *gorm.DB, codeID snowflake.ID) (int64, error)
	ListByCode(ctx context.Context, db *gorm.DB, codeID snowflake.ID, page pagination.Pagination) ([]*ReferralConversion, error)
}
