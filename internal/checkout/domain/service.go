package domain

import (
	"context"
	"errors"
	"time"
)

// SessionParams is what the payment provider needs to open a hosted
// checkout page. Metadata rides along and comes back on the completion
// webhook.
type SessionParams struct {
	Email        string
	ProductName  string
	AmountCents  int64
	Currency     string
	ReferralCode string
	UTMCampaign  string
}

// SessionProvider opens a checkout session with the payment provider and
// returns its reference plus the hosted payment URL.
type SessionProvider interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (ref string, url string, err error)
}

type CreateSessionRequest struct {
	Token        string `json:"token"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type CreateSessionResponse struct {
	SessionRef    string `json:"session_ref"`
	CheckoutURL   string `json:"checkout_url"`
	UTMCampaign   string `json:"utm_campaign"`
	PriceCents    int64  `json:"price_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type MintTokenRequest struct {
	UTMCampaign string `json:"utm_campaign"`
}

type MintTokenResponse struct {
	Token       string    `json:"token"`
	UTMCampaign string    `json:"utm_campaign"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResponse, error)

	// MintToken issues the signed campaign token embedded in audit-report
	// email links. Campaign teams call this through the admin surface.
	MintToken(ctx context.Context, req MintTokenRequest) (MintTokenResponse, error)
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidCampaign = errors.New("invalid_campaign")
)
