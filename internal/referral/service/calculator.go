package service

import (
	"context"

	"github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EnsureCurrentPeriod brings the code's rolling accrual window up to date
// before a period cap is applied. Codes without period semantics pass
// through untouched. The returned code reflects any reset.
func (s *Service) EnsureCurrentPeriod(ctx context.Context, code *domain.ReferralCode) (*domain.ReferralCode, error) {
	if code.RewardPeriodDays == nil {
		return code, nil
	}

	now := s.clock.Now()
	if code.PeriodStartAt != nil {
		windowEnd := code.PeriodStartAt.AddDate(0, 0, *code.RewardPeriodDays)
		if !now.After(windowEnd) {
			return code, nil
		}
	}

	if err := s.codes.ResetPeriod(ctx, s.db, code.ID, now); err != nil {
		return nil, err
	}

	updated := *code
	updated.PeriodStartAt = &now
	updated.PeriodRewardPaidCents = 0
	return &updated, nil
}

// CalculateReward computes the reward earned by a conversion and the amount
// payable after cap enforcement. Policy non-payouts come back as named
// reasons with SkipPayout set; they are never errors. The only side effect
// is the period manager's conditional window reset.
func (s *Service) CalculateReward(ctx context.Context, code *domain.ReferralCode, salePriceCents int64, isFirstConversion bool) (domain.PayoutCalculation, error) {
	if code.Tier == domain.TierFriendsFamily || code.RewardType == domain.RewardNone {
		return domain.PayoutCalculation{Reason: domain.ReasonNoRewardConfigured, SkipPayout: true}, nil
	}

	if code.RewardTrigger == domain.TriggerFirst && !isFirstConversion {
		return domain.PayoutCalculation{Reason: domain.ReasonFirstOnlyAlreadyPaid, SkipPayout: true}, nil
	}

	earned := earnedCents(code, salePriceCents)
	if earned == 0 {
		return domain.PayoutCalculation{Reason: domain.ReasonZeroReward, SkipPayout: true}, nil
	}

	code, err := s.EnsureCurrentPeriod(ctx, code)
	if err != nil {
		return domain.PayoutCalculation{}, err
	}

	payable := earned

	if code.MaxRewardTotalCents != nil {
		remaining := *code.MaxRewardTotalCents - code.TotalRewardPaidCents
		if remaining <= 0 {
			return domain.PayoutCalculation{
				EarnedCents: earned,
				Reason:      domain.ReasonLifetimeCapReached,
				SkipPayout:  true,
			}, nil
		}
		payable = min(payable, remaining)
	}

	if code.MaxRewardPerPeriodCents != nil {
		remaining := *code.MaxRewardPerPeriodCents - code.PeriodRewardPaidCents
		if remaining <= 0 {
			return domain.PayoutCalculation{
				EarnedCents: earned,
				Reason:      domain.ReasonPeriodCapReached,
				SkipPayout:  true,
			}, nil
		}
		payable = min(payable, remaining)
	}

	reason := domain.ReasonFullReward
	if payable < earned {
		reason = domain.ReasonCapped
	}

	s.log.Debug("reward calculated",
		zap.String("code", code.Code),
		zap.Int64("earned_cents", earned),
		zap.Int64("payable_cents", payable),
		zap.String("reason", string(reason)),
	)

	return domain.PayoutCalculation{
		EarnedCents:  earned,
		PayableCents: payable,
		Reason:       reason,
	}, nil
}

// earnedCents applies the code's reward policy to the sale amount. Percent
// rewards round half up on the cent: 7% of 19900 is exactly 1393.
func earnedCents(code *domain.ReferralCode, salePriceCents int64) int64 {
	switch code.RewardType {
	case domain.RewardFixed:
		return code.RewardAmountCents
	case domain.RewardPercent:
		return decimal.NewFromInt(salePriceCents).
			Mul(decimal.NewFromFloat(code.RewardPercent)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	default:
		return 0
	}
}
