package checkout

import (
	"context"
	"errors"
	"strings"

	checkoutdomain "github.com/pagescope/pagescope/internal/checkout/domain"
	"github.com/pagescope/pagescope/internal/checkout/service"
	"github.com/pagescope/pagescope/internal/checkout/utmtoken"
	"github.com/pagescope/pagescope/internal/config"
	"github.com/pagescope/pagescope/internal/payment/adapters/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(func(cfg config.Config) (*utmtoken.Signer, error) {
		return utmtoken.NewSigner(cfg.CheckoutTokenSecret)
	}),
	fx.Provide(func(cfg config.Config) (checkoutdomain.SessionProvider, error) {
		if strings.TrimSpace(cfg.Stripe.APIKey) == "" {
			return disabledSessionProvider{}, nil
		}
		return stripe.NewCheckoutProvider(
			cfg.Stripe.APIKey,
			cfg.Stripe.APIBaseURL,
			cfg.CheckoutSuccessURL,
			cfg.CheckoutCancelURL,
		)
	}),
	fx.Provide(service.New),
)

type disabledSessionProvider struct{}

func (disabledSessionProvider) CreateCheckoutSession(ctx context.Context, params checkoutdomain.SessionParams) (string, string, error) {
	return "", "", errors.New("payment provider not configured")
}
