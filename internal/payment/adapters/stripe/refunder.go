package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	paymentdomain "github.com/pagescope/pagescope/internal/payment/domain"
)

// Refunder pays referral rewards as partial refunds on the referrer's
// original Stripe payment.
type Refunder struct {
	api *apiClient
}

func NewRefunder(apiKey, baseURL string) (*Refunder, error) {
	api, err := newAPIClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &Refunder{api: api}, nil
}

type stripeAPICharge struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
}

type stripeAPIRefund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type stripeAPISession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
}

type stripeAPIPaymentIntent struct {
	ID           string `json:"id"`
	LatestCharge string `json:"latest_charge"`
}

func (r *Refunder) RefundableAmount(ctx context.Context, paymentRef string) (int64, error) {
	charge, err := r.resolveCharge(ctx, paymentRef)
	if err != nil {
		return 0, err
	}
	remaining := charge.Amount - charge.AmountRefunded
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (r *Refunder) CreateRefund(ctx context.Context, paymentRef string, amountCents int64, conversionID, reason string) (string, int64, error) {
	charge, err := r.resolveCharge(ctx, paymentRef)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{}
	form.Set("charge", charge.ID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("metadata[conversion_id]", conversionID)
	form.Set("metadata[reason]", reason)

	var refund stripeAPIRefund
	if err := r.api.do(ctx, http.MethodPost, "/v1/refunds", form, &refund); err != nil {
		return "", 0, err
	}
	if refund.Status == "failed" || refund.Status == "canceled" {
		return "", 0, fmt.Errorf("stripe refund %s: status %s", refund.ID, refund.Status)
	}
	return refund.ID, refund.Amount, nil
}

// resolveCharge follows a checkout session or payment intent reference
// down to the underlying charge. Charge refs pass through directly.
func (r *Refunder) resolveCharge(ctx context.Context, paymentRef string) (*stripeAPICharge, error) {
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return nil, paymentdomain.ErrRefundUnavailable
	}

	if strings.HasPrefix(ref, "cs_") {
		var session stripeAPISession
		if err := r.api.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(ref), nil, &session); err != nil {
			return nil, err
		}
		if session.PaymentIntent == "" {
			return nil, paymentdomain.ErrRefundUnavailable
		}
		ref = session.PaymentIntent
	}

	if strings.HasPrefix(ref, "pi_") {
		var intent stripeAPIPaymentIntent
		if err := r.api.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(ref), nil, &intent); err != nil {
			return nil, err
		}
		if intent.LatestCharge == "" {
			return nil, paymentdomain.ErrRefundUnavailable
		}
		ref = intent.LatestCharge
	}

	if !strings.HasPrefix(ref, "ch_") {
		return nil, paymentdomain.ErrRefundUnavailable
	}

	var charge stripeAPICharge
	if err := r.api.do(ctx, http.MethodGet, "/v1/charges/"+url.PathEscape(ref), nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}
