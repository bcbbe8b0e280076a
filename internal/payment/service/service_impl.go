package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	"github.com/pagescope/pagescope/internal/clock"
	obsmetrics "github.com/pagescope/pagescope/internal/observability/metrics"
	paymentdomain "github.com/pagescope/pagescope/internal/payment/domain"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	ReferralSvc referraldomain.Service
	CartSvc     cartdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	referralSvc referraldomain.Service
	cartSvc     cartdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		referralSvc: p.ReferralSvc,
		cartSvc:     p.CartSvc,
		obsMetrics:  p.ObsMetrics,
	}
}

// ProcessEvent records the delivery once and dispatches side effects.
// A redelivered event that already finished processing returns
// ErrEventAlreadyProcessed so the transport can acknowledge it without
// running the side effects twice.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		SaleRef:         event.SaleRef,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		if err := s.handleCheckoutCompleted(ctx, event); err != nil {
			return err
		}
	case paymentdomain.EventTypeRefunded:
		// Recorded for the audit trail; refunds issued for rewards come
		// back through here and need no further action.
		s.log.Info("refund recorded",
			zap.String("provider", event.Provider),
			zap.String("sale_ref", event.SaleRef),
			zap.Int64("amount_cents", event.AmountCents),
		)
	default:
		return paymentdomain.ErrInvalidEvent
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now().UTC()); err != nil {
		return err
	}

	if inserted {
		s.obsMetrics.RecordWebhookEvent(event.Provider, event.Type)
	}

	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	if event.Email != "" {
		if err := s.cartSvc.MarkRecovered(ctx, event.Email, event.SaleRef); err != nil {
			// Cart bookkeeping must not block reward processing.
			s.log.Warn("cart recovery update failed",
				zap.String("sale_ref", event.SaleRef),
				zap.Error(err),
			)
		}
	}

	if event.ReferralCode == "" {
		return nil
	}

	code, err := s.referralSvc.GetCode(ctx, referraldomain.GetCodeRequest{Code: event.ReferralCode})
	if err != nil {
		if errors.Is(err, referraldomain.ErrCodeNotFound) || errors.Is(err, referraldomain.ErrCodeInactive) {
			// A bad code on checkout metadata means the sale went through
			// without a valid referral. The sale itself is fine.
			s.log.Warn("checkout carried unusable referral code",
				zap.String("code", event.ReferralCode),
				zap.String("sale_ref", event.SaleRef),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	outcome, err := s.referralSvc.ProcessConversion(ctx, referraldomain.ConversionInput{
		Code:                 code.Code,
		SaleRef:              event.SaleRef,
		SaleAmountCents:      event.AmountCents,
		DiscountAppliedCents: event.DiscountAppliedCents,
		ReferrerPaymentRef:   code.OwnerSaleRef,
	})
	if err != nil {
		if errors.Is(err, referraldomain.ErrCodeNotFound) || errors.Is(err, referraldomain.ErrCodeInactive) {
			// The code was deactivated between checkout and delivery (or the
			// metadata was stale all along). Same deal as the lookup above:
			// the sale stands, the reward does not.
			s.log.Warn("checkout carried unusable referral code",
				zap.String("code", event.ReferralCode),
				zap.String("sale_ref", event.SaleRef),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	s.log.Info("conversion processed",
		zap.String("code", code.Code),
		zap.String("sale_ref", event.SaleRef),
		zap.String("conversion_id", outcome.ConversionID),
		zap.String("status", string(outcome.Status)),
		zap.Int64("paid_cents", outcome.Payout.AmountPaidCents),
		zap.Int64("pending_cents", outcome.Payout.PendingCents),
	)
	return nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.SaleRef = strings.TrimSpace(event.SaleRef)
	if event.SaleRef == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.AmountCents < 0 {
		return paymentdomain.ErrInvalidAmount
	}
	event.ReferralCode = strings.TrimSpace(event.ReferralCode)
	return nil
}
