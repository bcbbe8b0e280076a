package payment

import (
	"strings"

	"github.com/pagescope/pagescope/internal/config"
	"github.com/pagescope/pagescope/internal/payment/adapters"
	"github.com/pagescope/pagescope/internal/payment/adapters/stripe"
	"github.com/pagescope/pagescope/internal/payment/repository"
	paymentservice "github.com/pagescope/pagescope/internal/payment/service"
	"github.com/pagescope/pagescope/internal/payment/webhook"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) (*adapters.Registry, error) {
		if strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
			// No provider configured; webhook deliveries get provider_not_found.
			return adapters.NewRegistry(), nil
		}
		stripeAdapter, err := stripe.NewAdapter(cfg.Stripe.WebhookSecret)
		if err != nil {
			return nil, err
		}
		return adapters.NewRegistry(stripeAdapter), nil
	}),
	fx.Provide(func(cfg config.Config) (referraldomain.RefundProvider, error) {
		if strings.TrimSpace(cfg.Stripe.APIKey) == "" {
			return referraldomain.NoOpRefundProvider{}, nil
		}
		return stripe.NewRefunder(cfg.Stripe.APIKey, cfg.Stripe.APIBaseURL)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
