package domain

import (
	"context"
	"errors"
)

// RefundProvider is the external payment collaborator the payout executor
// realizes rewards through. A reward is paid as a partial refund against
// the referrer's original payment, so payout is bounded by how much of
// that payment is still refundable.
type RefundProvider interface {
	// RefundableAmount returns the cents still eligible for refund on the
	// payment, never negative.
	RefundableAmount(ctx context.Context, paymentRef string) (int64, error)

	// CreateRefund issues a partial refund tagged with the conversion id
	// and a human-readable reason. Returns the provider refund id and the
	// cents actually refunded.
	CreateRefund(ctx context.Context, paymentRef string, amountCents int64, conversionID, reason string) (string, int64, error)
}

// NoOpRefundProvider stands in when no payment provider is configured.
// Zero refundable capacity routes every reward to the manual payout queue
// instead of failing conversions outright.
type NoOpRefundProvider struct{}

func (NoOpRefundProvider) RefundableAmount(ctx context.Context, paymentRef string) (int64, error) {
	return 0, nil
}

func (NoOpRefundProvider) CreateRefund(ctx context.Context, paymentRef string, amountCents int64, conversionID, reason string) (string, int64, error) {
	return "", 0, errors.New("refund provider not configured")
}
