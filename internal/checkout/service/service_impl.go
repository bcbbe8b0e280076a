package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	checkoutdomain "github.com/pagescope/pagescope/internal/checkout/domain"
	"github.com/pagescope/pagescope/internal/checkout/utmtoken"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/config"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Cfg         config.Config
	Signer      *utmtoken.Signer
	Sessions    checkoutdomain.SessionProvider
	ReferralSvc referraldomain.Service
	CartSvc     cartdomain.Service
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	cfg         config.Config
	signer      *utmtoken.Signer
	sessions    checkoutdomain.SessionProvider
	referralSvc referraldomain.Service
	cartSvc     cartdomain.Service
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		log:         p.Log.Named("checkout.service"),
		clock:       p.Clock,
		cfg:         p.Cfg,
		signer:      p.Signer,
		sessions:    p.Sessions,
		referralSvc: p.ReferralSvc,
		cartSvc:     p.CartSvc,
	}
}

// CreateSession gates the purchase flow behind the signed UTM token the
// audit-report email carries, applies any referral discount to the list
// price, and opens the provider checkout session.
func (s *Service) CreateSession(ctx context.Context, req checkoutdomain.CreateSessionRequest) (checkoutdomain.CreateSessionResponse, error) {
	campaign, err := s.signer.Verify(req.Token, s.clock.Now())
	if err != nil {
		return checkoutdomain.CreateSessionResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return checkoutdomain.CreateSessionResponse{}, checkoutdomain.ErrInvalidEmail
	}

	price := s.cfg.ProductPriceCents
	var discount int64
	var ownerSaleRef string
	referralCode := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if referralCode != "" {
		code, err := s.referralSvc.GetCode(ctx, referraldomain.GetCodeRequest{Code: referralCode})
		if err != nil {
			return checkoutdomain.CreateSessionResponse{}, err
		}
		if !code.Active {
			return checkoutdomain.CreateSessionResponse{}, referraldomain.ErrCodeInactive
		}
		referralCode = code.Code
		ownerSaleRef = code.OwnerSaleRef
		discount = discountFor(code, price)
	}
	total := price - discount
	if total < 0 {
		total = 0
	}

	if total == 0 {
		// A fully discounted purchase has nothing for the provider to
		// collect; Stripe rejects zero-amount sessions. Complete the order
		// here and settle the referral directly since no webhook will come.
		return s.completeFreeOrder(ctx, email, campaign, referralCode, ownerSaleRef, price, discount)
	}

	ref, checkoutURL, err := s.sessions.CreateCheckoutSession(ctx, checkoutdomain.SessionParams{
		Email:        email,
		ProductName:  s.cfg.ProductName,
		AmountCents:  total,
		Currency:     "usd",
		ReferralCode: referralCode,
		UTMCampaign:  campaign,
	})
	if err != nil {
		return checkoutdomain.CreateSessionResponse{}, err
	}

	if _, err := s.cartSvc.Track(ctx, cartdomain.TrackInput{
		Email:       email,
		UTMCampaign: campaign,
		SaleRef:     ref,
		Stage:       cartdomain.StageCheckout,
	}); err != nil {
		// The buyer already has the payment page; losing the cart row only
		// costs a recovery email.
		s.log.Warn("cart tracking failed for checkout session",
			zap.String("session_ref", ref),
			zap.Error(err),
		)
	}

	s.log.Info("checkout session created",
		zap.String("session_ref", ref),
		zap.String("utm_campaign", campaign),
		zap.String("referral_code", referralCode),
		zap.Int64("total_cents", total),
	)

	return checkoutdomain.CreateSessionResponse{
		SessionRef:    ref,
		CheckoutURL:   checkoutURL,
		UTMCampaign:   campaign,
		PriceCents:    price,
		DiscountCents: discount,
		TotalCents:    total,
	}, nil
}

// completeFreeOrder settles a 100%-discounted purchase without the payment
// provider. The conversion is processed inline because no completion webhook
// will arrive for a sale with no payment.
func (s *Service) completeFreeOrder(ctx context.Context, email, campaign, referralCode, ownerSaleRef string, price, discount int64) (checkoutdomain.CreateSessionResponse, error) {
	saleRef := "free_" + uuid.NewString()

	if _, err := s.cartSvc.Track(ctx, cartdomain.TrackInput{
		Email:       email,
		UTMCampaign: campaign,
		SaleRef:     saleRef,
		Stage:       cartdomain.StageCompleted,
	}); err != nil {
		s.log.Warn("cart tracking failed for free order",
			zap.String("sale_ref", saleRef),
			zap.Error(err),
		)
	}

	if referralCode != "" {
		outcome, err := s.referralSvc.ProcessConversion(ctx, referraldomain.ConversionInput{
			Code:                 referralCode,
			SaleRef:              saleRef,
			SaleAmountCents:      0,
			DiscountAppliedCents: discount,
			ReferrerPaymentRef:   ownerSaleRef,
		})
		if err != nil {
			// The buyer already has the product; reward bookkeeping failures
			// cannot take that back.
			s.log.Warn("conversion processing failed for free order",
				zap.String("code", referralCode),
				zap.String("sale_ref", saleRef),
				zap.Error(err),
			)
		} else {
			s.log.Info("free order conversion processed",
				zap.String("code", referralCode),
				zap.String("sale_ref", saleRef),
				zap.String("status", string(outcome.Status)),
			)
		}
	}

	s.log.Info("free order completed",
		zap.String("sale_ref", saleRef),
		zap.String("utm_campaign", campaign),
		zap.String("referral_code", referralCode),
	)

	return checkoutdomain.CreateSessionResponse{
		SessionRef:    saleRef,
		CheckoutURL:   s.cfg.CheckoutSuccessURL,
		UTMCampaign:   campaign,
		PriceCents:    price,
		DiscountCents: discount,
		TotalCents:    0,
	}, nil
}

// MintToken signs a campaign token with the configured TTL.
func (s *Service) MintToken(ctx context.Context, req checkoutdomain.MintTokenRequest) (checkoutdomain.MintTokenResponse, error) {
	campaign := strings.TrimSpace(req.UTMCampaign)
	if campaign == "" || strings.Contains(campaign, "|") {
		return checkoutdomain.MintTokenResponse{}, checkoutdomain.ErrInvalidCampaign
	}

	expiresAt := s.clock.Now().Add(time.Duration(s.cfg.CheckoutTokenTTL) * time.Second)
	token, err := s.signer.Sign(campaign, expiresAt)
	if err != nil {
		return checkoutdomain.MintTokenResponse{}, err
	}

	return checkoutdomain.MintTokenResponse{
		Token:       token,
		UTMCampaign: campaign,
		ExpiresAt:   expiresAt,
	}, nil
}

func discountFor(code referraldomain.ReferralCode, priceCents int64) int64 {
	var discount int64
	switch code.DiscountType {
	case referraldomain.DiscountFixed:
		discount = code.DiscountAmountCents
	case referraldomain.DiscountPercent:
		discount = decimal.NewFromInt(priceCents).
			Mul(decimal.NewFromFloat(code.DiscountPercent)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}
	if discount < 0 {
		discount = 0
	}
	if discount > priceCents {
		discount = priceCents
	}
	return discount
}
