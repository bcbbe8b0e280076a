package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/config"
	obsmetrics "github.com/pagescope/pagescope/internal/observability/metrics"
	"github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Codes       domain.CodeRepository
	Conversions domain.ConversionRepository
	Refunds     domain.RefundProvider
	Policy      *config.ReferralPolicyHolder
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	codes       domain.CodeRepository
	conversions domain.ConversionRepository
	refunds     domain.RefundProvider
	policy      *config.ReferralPolicyHolder
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return NewService(p)
}

// NewService returns the concrete type for callers that need it in tests.
func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("referral.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		codes:       p.Codes,
		conversions: p.Conversions,
		refunds:     p.Refunds,
		policy:      p.Policy,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) CreateCode(ctx context.Context, req domain.CreateCodeRequest) (domain.ReferralCode, error) {
	value := strings.ToUpper(strings.TrimSpace(req.Code))
	if value == "" {
		return domain.ReferralCode{}, domain.ErrInvalidCode
	}
	ownerRef := strings.TrimSpace(req.OwnerSaleRef)
	if ownerRef == "" {
		return domain.ReferralCode{}, domain.ErrInvalidSaleRef
	}

	tier := domain.Tier(strings.TrimSpace(req.Tier))
	switch tier {
	case domain.TierStandard, domain.TierFriendsFamily, domain.TierAffiliate:
	case "":
		tier = domain.TierStandard
	default:
		return domain.ReferralCode{}, domain.ErrInvalidTier
	}

	policy, ok := s.policy.TierPolicy(string(tier))
	if !ok {
		return domain.ReferralCode{}, domain.ErrInvalidTier
	}

	now := s.clock.Now()
	code := domain.ReferralCode{
		ID:           s.genID.Generate(),
		Code:         value,
		OwnerSaleRef: ownerRef,
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Tier:         tier,

		DiscountType:        domain.DiscountType(policy.DiscountType),
		DiscountAmountCents: policy.DiscountAmountCents,
		DiscountPercent:     policy.DiscountPercent,

		RewardType:        domain.RewardType(policy.RewardType),
		RewardAmountCents: policy.RewardAmountCents,
		RewardPercent:     policy.RewardPercent,
		RewardTrigger:     domain.RewardTrigger(policy.RewardTrigger),

		MaxRewardTotalCents:     policy.MaxRewardTotalCents,
		MaxRewardPerPeriodCents: policy.MaxRewardPerPeriodCents,
		RewardPeriodDays:        policy.RewardPeriodDays,

		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.codes.Insert(ctx, s.db, &code); err != nil {
		return domain.ReferralCode{}, err
	}
	return code, nil
}

func (s *Service) GetCode(ctx context.Context, req domain.GetCodeRequest) (domain.ReferralCode, error) {
	value := strings.ToUpper(strings.TrimSpace(req.Code))
	if value == "" {
		return domain.ReferralCode{}, domain.ErrInvalidCode
	}

	code, err := s.codes.FindByCode(ctx, s.db, value)
	if err != nil {
		return domain.ReferralCode{}, err
	}
	if code == nil {
		return domain.ReferralCode{}, domain.ErrCodeNotFound
	}
	return *code, nil
}

func (s *Service) ListCodes(ctx context.Context, req domain.ListCodesRequest) (domain.ListCodesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := req.Pagination
	page.PageSize = pageSize

	items, err := s.codes.List(ctx, s.db, page)
	if err != nil {
		return domain.ListCodesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(code *domain.ReferralCode) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        code.ID.String(),
			CreatedAt: code.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	codes := make([]domain.ReferralCode, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		codes = append(codes, *item)
	}

	resp := domain.ListCodesResponse{Codes: codes}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListConversions(ctx context.Context, req domain.ListConversionsRequest) (domain.ListConversionsResponse, error) {
	code, err := s.GetCode(ctx, domain.GetCodeRequest{Code: req.Code})
	if err != nil {
		return domain.ListConversionsResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := req.Pagination
	page.PageSize = pageSize

	items, err := s.conversions.ListByCode(ctx, s.db, code.ID, page)
	if err != nil {
		return domain.ListConversionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(conversion *domain.ReferralConversion) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        conversion.ID.String(),
			CreatedAt: conversion.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	conversions := make([]domain.ReferralConversion, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		conversions = append(conversions, *item)
	}

	resp := domain.ListConversionsResponse{Conversions: conversions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// ProcessConversion runs the full engine once per completed sale carrying a
// referral code: calculate the reward, attempt the payout, record the
// conversion, then update the code's totals. Invoked by the payment webhook
// pipeline, which owns duplicate suppression upstream.
func (s *Service) ProcessConversion(ctx context.Context, input domain.ConversionInput) (domain.ConversionOutcome, error) {
	saleRef := strings.TrimSpace(input.SaleRef)
	if saleRef == "" {
		return domain.ConversionOutcome{}, domain.ErrInvalidSaleRef
	}
	if input.SaleAmountCents < 0 {
		return domain.ConversionOutcome{}, domain.ErrInvalidAmount
	}

	code, err := s.codes.FindByCode(ctx, s.db, strings.ToUpper(strings.TrimSpace(input.Code)))
	if err != nil {
		return domain.ConversionOutcome{}, err
	}
	if code == nil {
		return domain.ConversionOutcome{}, domain.ErrCodeNotFound
	}
	if !code.Active {
		return domain.ConversionOutcome{}, domain.ErrCodeInactive
	}

	existing, err := s.conversions.FindBySale(ctx, s.db, code.ID, saleRef)
	if err != nil {
		return domain.ConversionOutcome{}, err
	}
	count, err := s.conversions.CountByCode(ctx, s.db, code.ID)
	if err != nil {
		return domain.ConversionOutcome{}, err
	}
	isFirst := count == 0 || (existing != nil && count == 1)

	calc, err := s.CalculateReward(ctx, code, input.SaleAmountCents, isFirst)
	if err != nil {
		return domain.ConversionOutcome{}, err
	}

	conversionID := s.genID.Generate()
	if existing != nil {
		conversionID = existing.ID
	}

	var result domain.PayoutResult
	var status domain.PayoutStatus
	if calc.SkipPayout {
		result = domain.PayoutResult{Success: true}
		status = domain.PayoutStatusSkipped
	} else {
		result = s.ExecutePayout(ctx, code, conversionID.String(), calc.PayableCents, input.ReferrerPaymentRef)
		status = payoutStatus(result)
	}

	recordedID := s.RecordConversion(ctx, recordParams{
		ID:                   conversionID,
		CodeID:               code.ID,
		SaleRef:              saleRef,
		SaleAmountCents:      input.SaleAmountCents,
		DiscountAppliedCents: input.DiscountAppliedCents,
		Calculation:          calc,
		Result:               result,
		Status:               status,
	})

	if result.AmountPaidCents > 0 || result.PendingCents > 0 {
		if err := s.codes.AddPaidTotals(ctx, s.db, code.ID, result.AmountPaidCents, result.PendingCents); err != nil {
			// Money already moved; losing the bookkeeping update must be
			// loud and distinguishable from ordinary failures.
			s.log.Error("payout tracking update failed after refund",
				zap.String("code", code.Code),
				zap.String("conversion_id", conversionID.String()),
				zap.Int64("paid_cents", result.AmountPaidCents),
				zap.Int64("pending_cents", result.PendingCents),
				zap.Error(err),
			)
			s.obsMetrics.RecordTrackingFailure()
		}
	}

	if err := s.codes.IncrementRedemptions(ctx, s.db, code.ID); err != nil {
		s.log.Warn("redemption count update failed",
			zap.String("code", code.Code),
			zap.Error(err),
		)
	}

	s.obsMetrics.RecordPayout(string(result.Method), result.AmountPaidCents, result.PendingCents)

	outcome := domain.ConversionOutcome{
		Calculation: calc,
		Payout:      result,
		Status:      status,
	}
	if recordedID != 0 {
		outcome.ConversionID = recordedID.String()
	}
	return outcome, nil
}

type recordParams struct {
	ID                   snowflake.ID
	CodeID               snowflake.ID
	SaleRef              string
	SaleAmountCents      int64
	DiscountAppliedCents int64
	Calculation          domain.PayoutCalculation
	Result               domain.PayoutResult
	Status               domain.PayoutStatus
}

// RecordConversion upserts the conversion row for the (code, sale) pair.
// Persistence failures are logged and reported as a zero id rather than
// raised: the payout already happened or was deliberately skipped, and a
// bookkeeping write must not crash the webhook pipeline above us.
func (s *Service) RecordConversion(ctx context.Context, p recordParams) snowflake.ID {
	now := s.clock.Now()

	var paidAt *time.Time
	if p.Status == domain.PayoutStatusPaid {
		paidAt = &now
	}

	var errDetail string
	if p.Result.Err != nil {
		errDetail = p.Result.Err.Error()
	}

	conversion := domain.ReferralConversion{
		ID:                   p.ID,
		CodeID:               p.CodeID,
		SaleRef:              p.SaleRef,
		SaleAmountCents:      p.SaleAmountCents,
		DiscountAppliedCents: p.DiscountAppliedCents,
		RewardEarnedCents:    p.Calculation.EarnedCents,
		RewardPaidCents:      p.Result.AmountPaidCents,
		RewardPendingCents:   p.Result.PendingCents,
		PayoutStatus:         p.Status,
		PayoutMethod:         p.Result.Method,
		PayoutReason:         string(p.Calculation.Reason),
		RefundRef:            p.Result.RefundID,
		ErrorDetail:          errDetail,
		PaidAt:               paidAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.conversions.Upsert(ctx, s.db, &conversion); err != nil {
		s.log.Error("conversion record write failed",
			zap.String("sale_ref", p.SaleRef),
			zap.String("conversion_id", p.ID.String()),
			zap.Error(err),
		)
		return 0
	}
	return conversion.ID
}

func payoutStatus(result domain.PayoutResult) domain.PayoutStatus {
	switch {
	case !result.Success:
		return domain.PayoutStatusFailed
	case result.AmountPaidCents > 0:
		return domain.PayoutStatusPaid
	case result.PendingCents > 0:
		return domain.PayoutStatusPending
	default:
		// Nothing moved and nothing is owed; paid_at must stay unset.
		return domain.PayoutStatusSkipped
	}
}
