package service

import (
	"context"
	"fmt"

	"github.com/pagescope/pagescope/internal/referral/domain"
	"go.uber.org/zap"
)

// ExecutePayout realizes a payable amount as a partial refund against the
// referrer's original payment. Refund capacity bounds the payout a second
// time, independently of the policy caps; any shortfall is surfaced as
// PendingCents for manual settlement, never dropped.
func (s *Service) ExecutePayout(ctx context.Context, code *domain.ReferralCode, conversionID string, payableCents int64, referrerPaymentRef string) domain.PayoutResult {
	if payableCents <= 0 {
		return domain.PayoutResult{Success: true}
	}

	capacity, err := s.refunds.RefundableAmount(ctx, referrerPaymentRef)
	if err != nil {
		s.log.Warn("refund capacity lookup failed",
			zap.String("code", code.Code),
			zap.String("payment_ref", referrerPaymentRef),
			zap.Error(err),
		)
		return domain.PayoutResult{
			PendingCents: payableCents,
			Err:          domain.ErrRefundFailed,
		}
	}

	if capacity <= 0 {
		return domain.PayoutResult{
			Success:      true,
			Method:       domain.PayoutMethodPendingManual,
			PendingCents: payableCents,
		}
	}

	refundAmount := min(payableCents, capacity)
	pendingAmount := payableCents - refundAmount

	reason := fmt.Sprintf("Referral reward for code %s", code.Code)
	refundID, refunded, err := s.refunds.CreateRefund(ctx, referrerPaymentRef, refundAmount, conversionID, reason)
	if err != nil {
		s.log.Error("refund issuance failed",
			zap.String("code", code.Code),
			zap.String("conversion_id", conversionID),
			zap.Int64("amount_cents", refundAmount),
			zap.Error(err),
		)
		return domain.PayoutResult{
			PendingCents: payableCents,
			Err:          domain.ErrRefundFailed,
		}
	}

	method := domain.PayoutMethodRefund
	if pendingAmount > 0 {
		method = domain.PayoutMethodPendingManual
	}

	return domain.PayoutResult{
		Success:         true,
		Method:          method,
		AmountPaidCents: refunded,
		PendingCents:    pendingAmount,
		RefundID:        refundID,
	}
}
