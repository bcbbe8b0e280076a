package domain

import (
	"context"
	"errors"

	"github.com/pagescope/pagescope/pkg/db/pagination"
)

type CreateCodeRequest struct {
	Code         string `json:"code"`
	OwnerSaleRef string `json:"owner_sale_ref"`
	CompanyName  string `json:"company_name"`
	Tier         string `json:"tier"`
}

type GetCodeRequest struct {
	Code string
}

type ListConversionsRequest struct {
	Code string
	pagination.Pagination
}

type ListConversionsResponse struct {
	pagination.PageInfo
	Conversions []ReferralConversion `json:"conversions"`
}

type ListCodesRequest struct {
	pagination.Pagination
}

type ListCodesResponse struct {
	pagination.PageInfo
	Codes []ReferralCode `json:"codes"`
}

// ConversionInput is what the webhook pipeline hands the engine once per
// completed sale carrying a referral code.
type ConversionInput struct {
	Code                 string
	SaleRef              string
	SaleAmountCents      int64
	DiscountAppliedCents int64

	// ReferrerPaymentRef is the payment the reward is realized against as a
	// partial refund.
	ReferrerPaymentRef string
}

// ConversionOutcome reports what the engine did for one sale.
type ConversionOutcome struct {
	ConversionID string            `json:"conversion_id,omitempty"`
	Calculation  PayoutCalculation `json:"calculation"`
	Payout       PayoutResult      `json:"payout"`
	Status       PayoutStatus      `json:"status"`
}

type Service interface {
	CreateCode(ctx context.Context, req CreateCodeRequest) (ReferralCode, error)
	GetCode(ctx context.Context, req GetCodeRequest) (ReferralCode, error)
	ListCodes(ctx context.Context, req ListCodesRequest) (ListCodesResponse, error)
	ListConversions(ctx context.Context, req ListConversionsRequest) (ListConversionsResponse, error)

	// ProcessConversion runs calculate → execute → record → track for one
	// completed sale. Policy non-payouts are outcomes, not errors.
	ProcessConversion(ctx context.Context, input ConversionInput) (ConversionOutcome, error)
}

var (
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidTier    = errors.New("invalid_tier")
	ErrInvalidSaleRef = errors.New("invalid_sale_ref")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrCodeNotFound   = errors.New("code_not_found")
	ErrCodeInactive   = errors.New("code_inactive")
	ErrRefundFailed   = errors.New("refund_failed")
	ErrTrackingFailed = errors.New("tracking_failed")
)
