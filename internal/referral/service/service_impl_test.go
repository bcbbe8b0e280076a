package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"github.com/stretchr/testify/require"
)

func TestProcessConversionPaysAndTracks(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:                 strings.ToLower(code.Code),
		SaleRef:              "cs_sale_1",
		SaleAmountCents:      199_00,
		DiscountAppliedCents: 19_90,
		ReferrerPaymentRef:   "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusPaid, outcome.Status)
	require.NotEmpty(t, outcome.ConversionID)
	require.Equal(t, int64(25_00), outcome.Calculation.EarnedCents)
	require.Equal(t, int64(25_00), outcome.Calculation.PayableCents)
	require.Equal(t, domain.ReasonFullReward, outcome.Calculation.Reason)
	require.Equal(t, domain.PayoutMethodRefund, outcome.Payout.Method)
	require.Equal(t, int64(25_00), outcome.Payout.AmountPaidCents)

	stored := env.reloadCode(t, code.ID)
	require.Equal(t, int64(25_00), stored.TotalRewardPaidCents)
	require.Equal(t, int64(25_00), stored.PeriodRewardPaidCents)
	require.Zero(t, stored.PendingPayoutCents)
	require.Equal(t, int64(1), stored.RedemptionCount)

	conversion := findConversion(t, env, code, "cs_sale_1")
	require.Equal(t, domain.PayoutStatusPaid, conversion.PayoutStatus)
	require.Equal(t, int64(25_00), conversion.RewardPaidCents)
	require.Equal(t, "re_1", conversion.RefundRef)
	require.NotNil(t, conversion.PaidAt)
	require.Empty(t, conversion.ErrorDetail)

	require.Len(t, env.refunder.calls, 1)
	require.Equal(t, "ch_owner", env.refunder.calls[0].PaymentRef)
}

func TestProcessConversionReprocessUpdatesExistingRow(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	input := domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_1",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	}

	first, err := env.svc.ProcessConversion(context.Background(), input)
	require.NoError(t, err)
	second, err := env.svc.ProcessConversion(context.Background(), input)
	require.NoError(t, err)

	// The (code, sale) pair maps to one row, so replaying the same sale
	// keeps the original conversion id and row count.
	require.Equal(t, first.ConversionID, second.ConversionID)

	var count int64
	require.NoError(t, env.db.Model(&domain.ReferralConversion{}).
		Where("code_id = ?", code.ID).
		Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestProcessConversionFirstOnlySecondSaleSkipped(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
		RewardTrigger:     domain.TriggerFirst,
	})

	outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_1",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusPaid, outcome.Status)

	outcome, err = env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_2",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusSkipped, outcome.Status)
	require.Equal(t, domain.ReasonFirstOnlyAlreadyPaid, outcome.Calculation.Reason)
	require.Len(t, env.refunder.calls, 1)

	stored := env.reloadCode(t, code.ID)
	require.Equal(t, int64(25_00), stored.TotalRewardPaidCents)
	require.Equal(t, int64(2), stored.RedemptionCount)

	conversion := findConversion(t, env, code, "cs_sale_2")
	require.Equal(t, domain.PayoutStatusSkipped, conversion.PayoutStatus)
	require.Nil(t, conversion.PaidAt)
	require.Zero(t, conversion.RewardPaidCents)
}

func TestProcessConversionFriendsFamilySkipped(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		Tier:              domain.TierFriendsFamily,
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_1",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusSkipped, outcome.Status)
	require.Equal(t, domain.ReasonNoRewardConfigured, outcome.Calculation.Reason)
	require.Empty(t, env.refunder.calls)

	stored := env.reloadCode(t, code.ID)
	require.Zero(t, stored.TotalRewardPaidCents)
	require.Equal(t, int64(1), stored.RedemptionCount)
}

func TestProcessConversionRefundFailureRecordedAsFailed(t *testing.T) {
	env := newTestEnv(t)
	env.refunder.refundErr = errors.New("provider unavailable")
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_1",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Payout.Err, domain.ErrRefundFailed)

	conversion := findConversion(t, env, code, "cs_sale_1")
	require.Equal(t, domain.PayoutStatusFailed, conversion.PayoutStatus)
	require.Equal(t, domain.ErrRefundFailed.Error(), conversion.ErrorDetail)
	require.Equal(t, int64(25_00), conversion.RewardPendingCents)
	require.Nil(t, conversion.PaidAt)

	// The unrealized amount stays visible as pending so nothing owed is
	// silently dropped.
	stored := env.reloadCode(t, code.ID)
	require.Zero(t, stored.TotalRewardPaidCents)
	require.Equal(t, int64(25_00), stored.PendingPayoutCents)
}

func TestProcessConversionPartialCapacitySplitsPayout(t *testing.T) {
	env := newTestEnv(t)
	env.refunder.capacity = 20_00
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 50_00,
	})

	outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:               code.Code,
		SaleRef:            "cs_sale_1",
		SaleAmountCents:    199_00,
		ReferrerPaymentRef: "ch_owner",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutStatusPaid, outcome.Status)
	require.Equal(t, domain.PayoutMethodPendingManual, outcome.Payout.Method)
	require.Equal(t, int64(20_00), outcome.Payout.AmountPaidCents)
	require.Equal(t, int64(30_00), outcome.Payout.PendingCents)

	stored := env.reloadCode(t, code.ID)
	require.Equal(t, int64(20_00), stored.TotalRewardPaidCents)
	require.Equal(t, int64(30_00), stored.PendingPayoutCents)
}

func TestProcessConversionLifetimeCapAcrossSales(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:          domain.RewardFixed,
		RewardAmountCents:   25_00,
		MaxRewardTotalCents: int64Ptr(40_00),
	})

	pay := func(saleRef string) domain.ConversionOutcome {
		outcome, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
			Code:               code.Code,
			SaleRef:            saleRef,
			SaleAmountCents:    199_00,
			ReferrerPaymentRef: "ch_owner",
		})
		require.NoError(t, err)
		return outcome
	}

	first := pay("cs_sale_1")
	require.Equal(t, int64(25_00), first.Payout.AmountPaidCents)
	require.Equal(t, domain.ReasonFullReward, first.Calculation.Reason)

	second := pay("cs_sale_2")
	require.Equal(t, int64(15_00), second.Payout.AmountPaidCents)
	require.Equal(t, domain.ReasonCapped, second.Calculation.Reason)

	third := pay("cs_sale_3")
	require.Equal(t, domain.PayoutStatusSkipped, third.Status)
	require.Equal(t, domain.ReasonLifetimeCapReached, third.Calculation.Reason)

	stored := env.reloadCode(t, code.ID)
	require.Equal(t, int64(40_00), stored.TotalRewardPaidCents)
}

func TestProcessConversionValidation(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	_, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:            code.Code,
		SaleRef:         "  ",
		SaleAmountCents: 199_00,
	})
	require.ErrorIs(t, err, domain.ErrInvalidSaleRef)

	_, err = env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:            code.Code,
		SaleRef:         "cs_sale_1",
		SaleAmountCents: -1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:            "NOSUCHCODE",
		SaleRef:         "cs_sale_1",
		SaleAmountCents: 199_00,
	})
	require.ErrorIs(t, err, domain.ErrCodeNotFound)

	require.NoError(t, env.db.Exec(
		`UPDATE referral_codes SET active = FALSE WHERE id = ?`, code.ID).Error)
	_, err = env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
		Code:            code.Code,
		SaleRef:         "cs_sale_1",
		SaleAmountCents: 199_00,
	})
	require.ErrorIs(t, err, domain.ErrCodeInactive)
}

func TestCreateCodeAppliesTierPolicy(t *testing.T) {
	env := newTestEnv(t)

	code, err := env.svc.CreateCode(context.Background(), domain.CreateCodeRequest{
		Code:         "acme10",
		OwnerSaleRef: "cs_owner",
		CompanyName:  "Acme Inc",
		Tier:         "standard",
	})
	require.NoError(t, err)
	require.Equal(t, "ACME10", code.Code)
	require.Equal(t, domain.TierStandard, code.Tier)
	require.Equal(t, domain.RewardFixed, code.RewardType)
	require.Equal(t, int64(25_00), code.RewardAmountCents)
	require.Equal(t, domain.TriggerFirst, code.RewardTrigger)
	require.NotNil(t, code.MaxRewardTotalCents)
	require.Equal(t, int64(100_00), *code.MaxRewardTotalCents)
	require.True(t, code.Active)

	stored, err := env.svc.GetCode(context.Background(), domain.GetCodeRequest{Code: "acme10"})
	require.NoError(t, err)
	require.Equal(t, code.ID, stored.ID)
}

func TestCreateCodeRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateCode(context.Background(), domain.CreateCodeRequest{
		Code:         "",
		OwnerSaleRef: "cs_owner",
	})
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = env.svc.CreateCode(context.Background(), domain.CreateCodeRequest{
		Code:         "ACME10",
		OwnerSaleRef: "",
	})
	require.ErrorIs(t, err, domain.ErrInvalidSaleRef)

	_, err = env.svc.CreateCode(context.Background(), domain.CreateCodeRequest{
		Code:         "ACME10",
		OwnerSaleRef: "cs_owner",
		Tier:         "platinum",
	})
	require.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestGetCodeNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetCode(context.Background(), domain.GetCodeRequest{Code: "MISSING"})
	require.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestListCodesPaginates(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 5; i++ {
		env.seedCode(t, domain.ReferralCode{
			Code:              fmt.Sprintf("PARTNER%d", i),
			RewardType:        domain.RewardFixed,
			RewardAmountCents: 25_00,
		})
		env.clock.Advance(time.Minute)
	}

	resp, err := env.svc.ListCodes(context.Background(), domain.ListCodesRequest{
		Pagination: pagination.Pagination{PageSize: 3},
	})
	require.NoError(t, err)
	require.Len(t, resp.Codes, 3)
	require.True(t, resp.HasMore)
	require.Equal(t, "PARTNER5", resp.Codes[0].Code)

	resp, err = env.svc.ListCodes(context.Background(), domain.ListCodesRequest{
		Pagination: pagination.Pagination{
			PageSize:  10,
			PageToken: resp.NextPageToken,
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Codes, 2)
	require.False(t, resp.HasMore)
}

func TestListConversionsPaginates(t *testing.T) {
	env := newTestEnv(t)
	code := env.seedCode(t, domain.ReferralCode{
		RewardType:        domain.RewardFixed,
		RewardAmountCents: 25_00,
	})

	for i := 1; i <= 5; i++ {
		_, err := env.svc.ProcessConversion(context.Background(), domain.ConversionInput{
			Code:               code.Code,
			SaleRef:            fmt.Sprintf("cs_sale_%d", i),
			SaleAmountCents:    199_00,
			ReferrerPaymentRef: "ch_owner",
		})
		require.NoError(t, err)
		env.clock.Advance(time.Minute)
	}

	resp, err := env.svc.ListConversions(context.Background(), domain.ListConversionsRequest{
		Code:       code.Code,
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, resp.Conversions, 2)
	require.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)
	require.Equal(t, "cs_sale_5", resp.Conversions[0].SaleRef)
	require.Equal(t, "cs_sale_4", resp.Conversions[1].SaleRef)

	resp, err = env.svc.ListConversions(context.Background(), domain.ListConversionsRequest{
		Code: code.Code,
		Pagination: pagination.Pagination{
			PageSize:  10,
			PageToken: resp.NextPageToken,
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Conversions, 3)
	require.False(t, resp.HasMore)
}

func findConversion(t *testing.T, env *testEnv, code domain.ReferralCode, saleRef string) domain.ReferralConversion {
	t.Helper()

	var conversion domain.ReferralConversion
	err := env.db.Model(&domain.ReferralConversion{}).
		Where("code_id = ? AND sale_ref = ?", code.ID, saleRef).
		Limit(1).
		Find(&conversion).Error
	require.NoError(t, err)
	require.NotZero(t, conversion.ID)
	return conversion
}
