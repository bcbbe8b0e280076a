package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"gorm.io/gorm"
)

type codeRepo struct{}

func ProvideCodeRepository() domain.CodeRepository {
	return &codeRepo{}
}

func (r *codeRepo) Insert(ctx context.Context, db *gorm.DB, code *domain.ReferralCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_codes (
			id, code, owner_sale_ref, company_name, tier,
			discount_type, discount_amount_cents, discount_percent,
			reward_type, reward_amount_cents, reward_percent, reward_trigger,
			max_reward_total_cents, max_reward_per_period_cents, reward_period_days,
			total_reward_paid_cents, period_reward_paid_cents, period_start_at,
			pending_payout_cents, redemption_count, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.Code,
		code.OwnerSaleRef,
		code.CompanyName,
		code.Tier,
		code.DiscountType,
		code.DiscountAmountCents,
		code.DiscountPercent,
		code.RewardType,
		code.RewardAmountCents,
		code.RewardPercent,
		code.RewardTrigger,
		code.MaxRewardTotalCents,
		code.MaxRewardPerPeriodCents,
		code.RewardPeriodDays,
		code.TotalRewardPaidCents,
		code.PeriodRewardPaidCents,
		code.PeriodStartAt,
		code.PendingPayoutCents,
		code.RedemptionCount,
		code.Active,
		code.CreatedAt,
		code.UpdatedAt,
	).Error
}

func (r *codeRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ReferralCode, error) {
	var code domain.ReferralCode
	err := db.WithContext(ctx).
		Model(&domain.ReferralCode{}).
		Where("id = ?", id).
		Limit(1).
		Find(&code).Error
	if err != nil {
		return nil, err
	}
	if code.ID == 0 {
		return nil, nil
	}
	return &code, nil
}

func (r *codeRepo) FindByCode(ctx context.Context, db *gorm.DB, value string) (*domain.ReferralCode, error) {
	var code domain.ReferralCode
	err := db.WithContext(ctx).
		Model(&domain.ReferralCode{}).
		Where("code = ?", value).
		Limit(1).
		Find(&code).Error
	if err != nil {
		return nil, err
	}
	if code.ID == 0 {
		return nil, nil
	}
	return &code, nil
}

func (r *codeRepo) ResetPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, startAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_codes
		 SET period_start_at = ?, period_reward_paid_cents = 0, updated_at = ?
		 WHERE id = ?`,
		startAt,
		startAt,
		id,
	).Error
}

// AddPaidTotals is the cap-enforcement boundary: a single database-side
// increment, never read-modify-write in application code.
func (r *codeRepo) AddPaidTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, paidCents, pendingCents int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_codes
		 SET total_reward_paid_cents = total_reward_paid_cents + ?,
		     period_reward_paid_cents = period_reward_paid_cents + ?,
		     pending_payout_cents = pending_payout_cents + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		paidCents,
		paidCents,
		pendingCents,
		id,
	).Error
}

func (r *codeRepo) IncrementRedemptions(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_codes
		 SET redemption_count = redemption_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		id,
	).Error
}

type conversionRepo struct{}

func ProvideConversionRepository() domain.ConversionRepository {
	return &conversionRepo{}
}

func (r *codeRepo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.ReferralCode, error) {
	stmt := db.WithContext(ctx).Model(&domain.ReferralCode{})

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.CreatedAt != "" {
			if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
				stmt = stmt.Where("created_at < ?", createdAt)
			}
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var codes []*domain.ReferralCode
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *conversionRepo) Upsert(ctx context.Context, db *gorm.DB, conversion *domain.ReferralConversion) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_conversions (
			id, code_id, sale_ref, sale_amount_cents, discount_applied_cents,
			reward_earned_cents, reward_paid_cents, reward_pending_cents,
			payout_status, payout_method, payout_reason, refund_ref, error_detail,
			paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code_id, sale_ref) DO UPDATE SET
			sale_amount_cents = excluded.sale_amount_cents,
			discount_applied_cents = excluded.discount_applied_cents,
			reward_earned_cents = excluded.reward_earned_cents,
			reward_paid_cents = excluded.reward_paid_cents,
			reward_pending_cents = excluded.reward_pending_cents,
			payout_status = excluded.payout_status,
			payout_method = excluded.payout_method,
			payout_reason = excluded.payout_reason,
			refund_ref = excluded.refund_ref,
			error_detail = excluded.error_detail,
			paid_at = excluded.paid_at,
			updated_at = excluded.updated_at`,
		conversion.ID,
		conversion.CodeID,
		conversion.SaleRef,
		conversion.SaleAmountCents,
		conversion.DiscountAppliedCents,
		conversion.RewardEarnedCents,
		conversion.RewardPaidCents,
		conversion.RewardPendingCents,
		conversion.PayoutStatus,
		conversion.PayoutMethod,
		conversion.PayoutReason,
		conversion.RefundRef,
		conversion.ErrorDetail,
		conversion.PaidAt,
		conversion.CreatedAt,
		conversion.UpdatedAt,
	).Error
}

func (r *conversionRepo) FindBySale(ctx context.Context, db *gorm.DB, codeID snowflake.ID, saleRef string) (*domain.ReferralConversion, error) {
	var conversion domain.ReferralConversion
	err := db.WithContext(ctx).
		Model(&domain.ReferralConversion{}).
		Where("code_id = ? AND sale_ref = ?", codeID, saleRef).
		Limit(1).
		Find(&conversion).Error
	if err != nil {
		return nil, err
	}
	if conversion.ID == 0 {
		return nil, nil
	}
	return &conversion, nil
}

func (r *conversionRepo) CountByCode(ctx context.Context, db *gorm.DB, codeID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ReferralConversion{}).
		Where("code_id = ?", codeID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *conversionRepo) ListByCode(ctx context.Context, db *gorm.DB, codeID snowflake.ID, page pagination.Pagination) ([]*domain.ReferralConversion, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ReferralConversion{}).
		Where("code_id = ?", codeID)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.CreatedAt != "" {
			if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
				stmt = stmt.Where("created_at < ?", createdAt)
			}
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var conversions []*domain.ReferralConversion
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&conversions).Error
	if err != nil {
		return nil, err
	}
	return conversions, nil
}
