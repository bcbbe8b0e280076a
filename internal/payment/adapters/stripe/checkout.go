package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	checkoutdomain "github.com/pagescope/pagescope/internal/checkout/domain"
)

// CheckoutProvider opens hosted Stripe Checkout sessions for the purchase
// flow. The referral code and campaign travel as session metadata so the
// completion webhook can attribute the sale.
type CheckoutProvider struct {
	api        *apiClient
	successURL string
	cancelURL  string
}

func NewCheckoutProvider(apiKey, baseURL, successURL, cancelURL string) (*CheckoutProvider, error) {
	api, err := newAPIClient(apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &CheckoutProvider{
		api:        api,
		successURL: strings.TrimSpace(successURL),
		cancelURL:  strings.TrimSpace(cancelURL),
	}, nil
}

func (p *CheckoutProvider) CreateCheckoutSession(ctx context.Context, params checkoutdomain.SessionParams) (string, string, error) {
	if params.AmountCents <= 0 {
		return "", "", errors.New("checkout amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer_email", params.Email)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.ReferralCode != "" {
		form.Set("metadata[referral_code]", params.ReferralCode)
	}
	if params.UTMCampaign != "" {
		form.Set("metadata[utm_campaign]", params.UTMCampaign)
	}
	if p.successURL != "" {
		form.Set("success_url", p.successURL)
	}
	if p.cancelURL != "" {
		form.Set("cancel_url", p.cancelURL)
	}

	var session stripeAPISession
	if err := p.api.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return "", "", err
	}
	return session.ID, session.URL, nil
}
