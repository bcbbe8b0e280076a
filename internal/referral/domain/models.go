package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tier string

const (
	TierStandard      Tier = "standard"
	TierFriendsFamily Tier = "friends_family"
	TierAffiliate     Tier = "affiliate"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

type RewardType string

const (
	RewardFixed   RewardType = "fixed"
	RewardPercent RewardType = "percent"
	RewardNone    RewardType = "none"
)

type RewardTrigger string

const (
	TriggerFirst RewardTrigger = "first"
	TriggerEvery RewardTrigger = "every"
)

// ReferralCode is one issued code with its discount and reward policy and
// the running payout totals the caps are enforced against.
type ReferralCode struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Code         string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	OwnerSaleRef string       `gorm:"type:text;not null" json:"owner_sale_ref"`
	CompanyName  string       `gorm:"type:text" json:"company_name"`
	Tier         Tier         `gorm:"type:text;not null" json:"tier"`

	DiscountType        DiscountType `gorm:"type:text;not null" json:"discount_type"`
	DiscountAmountCents int64        `gorm:"not null;default:0" json:"discount_amount_cents"`
	DiscountPercent     float64      `gorm:"not null;default:0" json:"discount_percent"`

	RewardType        RewardType    `gorm:"type:text;not null" json:"reward_type"`
	RewardAmountCents int64         `gorm:"not null;default:0" json:"reward_amount_cents"`
	RewardPercent     float64       `gorm:"not null;default:0" json:"reward_percent"`
	RewardTrigger     RewardTrigger `gorm:"type:text;not null;default:'first'" json:"reward_trigger"`

	MaxRewardTotalCents     *int64 `json:"max_reward_total_cents,omitempty"`
	MaxRewardPerPeriodCents *int64 `json:"max_reward_per_period_cents,omitempty"`
	RewardPeriodDays        *int   `json:"reward_period_days,omitempty"`

	TotalRewardPaidCents  int64      `gorm:"not null;default:0" json:"total_reward_paid_cents"`
	PeriodRewardPaidCents int64      `gorm:"not null;default:0" json:"period_reward_paid_cents"`
	PeriodStartAt         *time.Time `json:"period_start_at,omitempty"`
	PendingPayoutCents    int64      `gorm:"not null;default:0" json:"pending_payout_cents"`
	RedemptionCount       int64      `gorm:"not null;default:0" json:"redemption_count"`

	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
	PayoutStatusSkipped PayoutStatus = "skipped"
)

type PayoutMethod string

const (
	PayoutMethodRefund        PayoutMethod = "refund"
	PayoutMethodPendingManual PayoutMethod = "pending_manual"
)

// ReferralConversion records one referee sale attributed to a code. The
// (code_id, sale_ref) pair is unique; reprocessing the same sale updates
// the existing row.
type ReferralConversion struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	CodeID  snowflake.ID `gorm:"not null;index;uniqueIndex:idx_conversion_code_sale" json:"code_id"`
	SaleRef string       `gorm:"type:text;not null;uniqueIndex:idx_conversion_code_sale" json:"sale_ref"`

	SaleAmountCents      int64 `gorm:"not null;default:0" json:"sale_amount_cents"`
	DiscountAppliedCents int64 `gorm:"not null;default:0" json:"discount_applied_cents"`
	RewardEarnedCents    int64 `gorm:"not null;default:0" json:"reward_earned_cents"`
	RewardPaidCents      int64 `gorm:"not null;default:0" json:"reward_paid_cents"`
	RewardPendingCents   int64 `gorm:"not null;default:0" json:"reward_pending_cents"`

	PayoutStatus PayoutStatus `gorm:"type:text;not null;default:'pending'" json:"payout_status"`
	PayoutMethod PayoutMethod `gorm:"type:text" json:"payout_method,omitempty"`
	PayoutReason string       `gorm:"type:text" json:"payout_reason,omitempty"`
	RefundRef    string       `gorm:"type:text" json:"refund_ref,omitempty"`
	ErrorDetail  string       `gorm:"type:text" json:"error_detail,omitempty"`
	PaidAt       *time.Time   `json:"paid_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReferralConversion) TableName() string { return "referral_conversions" }

// Reason classifies a calculation outcome.
type Reason string

const (
	ReasonFullReward           Reason = "full_reward"
	ReasonCapped               Reason = "capped"
	ReasonNoRewardConfigured   Reason = "no_reward_configured"
	ReasonFirstOnlyAlreadyPaid Reason = "first_only_already_paid"
	ReasonZeroReward           Reason = "zero_reward"
	ReasonLifetimeCapReached   Reason = "lifetime_cap_reached"
	ReasonPeriodCapReached     Reason = "period_cap_reached"
)

// PayoutCalculation is the transient result of the reward calculator.
type PayoutCalculation struct {
	EarnedCents  int64
	PayableCents int64
	Reason       Reason
	SkipPayout   bool
}

// PayoutResult is the transient result of a payout execution.
type PayoutResult struct {
	Success         bool
	Method          PayoutMethod
	AmountPaidCents int64
	PendingCents    int64
	RefundID        string
	Err             error
}
