package service

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/cart/domain"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/config"
	obsmetrics "github.com/pagescope/pagescope/internal/observability/metrics"
	"github.com/pagescope/pagescope/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var recoveryTemplate = template.Must(template.New("cart_recovery").Parse(`
<p>Hi,</p>
<p>You were one step away from your PageScope website audit. Your checkout
is still open — pick up right where you left off.</p>
<p><a href="https://pagescope.dev/checkout?utm_campaign={{.Campaign}}">Finish your purchase</a></p>
<p>— The PageScope team</p>
`))

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Email      email.Provider
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	email      email.Provider
	cfg        config.CartConfig
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("cart.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		email:      p.Email,
		cfg:        p.Cfg.Cart,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Track(ctx context.Context, input domain.TrackInput) (*domain.CartSession, error) {
	addr := normalizeEmail(input.Email)
	if addr == "" {
		return nil, domain.ErrInvalidEmail
	}
	campaign := strings.TrimSpace(input.UTMCampaign)
	if campaign == "" {
		return nil, domain.ErrInvalidCampaign
	}

	stage := input.Stage
	switch stage {
	case domain.StageStarted, domain.StageCheckout, domain.StageCompleted:
	case "":
		stage = domain.StageStarted
	default:
		return nil, domain.ErrInvalidStage
	}

	now := s.clock.Now()
	session := domain.CartSession{
		ID:          s.genID.Generate(),
		Email:       addr,
		UTMCampaign: campaign,
		SaleRef:     strings.TrimSpace(input.SaleRef),
		Stage:       stage,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, s.db, &session); err != nil {
		return nil, err
	}

	// The upsert may have hit an existing row; read back the stored state.
	stored, err := s.repo.FindByEmailCampaign(ctx, s.db, addr, campaign)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &session, nil
	}
	return stored, nil
}

func (s *Service) MarkRecovered(ctx context.Context, emailAddr, saleRef string) error {
	addr := normalizeEmail(emailAddr)
	if addr == "" {
		return domain.ErrInvalidEmail
	}

	recovered, err := s.repo.MarkRecovered(ctx, s.db, addr, strings.TrimSpace(saleRef), s.clock.Now())
	if err != nil {
		return err
	}
	if recovered > 0 {
		s.log.Info("cart recovered",
			zap.String("email", addr),
			zap.String("sale_ref", saleRef),
			zap.Int64("carts", recovered),
		)
		s.obsMetrics.RecordCartRecovered(recovered)
	}
	return nil
}

func (s *Service) SendRecoveryReminders(ctx context.Context) (int, error) {
	delay := time.Duration(s.cfg.ReminderDelayMinutes) * time.Minute
	cutoff := s.clock.Now().Add(-delay)

	sessions, err := s.repo.FindAbandoned(ctx, s.db, cutoff, s.cfg.MaxReminders, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, session := range sessions {
		if err := s.sendReminder(ctx, session); err != nil {
			s.log.Warn("recovery email failed",
				zap.String("email", session.Email),
				zap.String("campaign", session.UTMCampaign),
				zap.Error(err),
			)
			continue
		}
		if err := s.repo.IncrementReminder(ctx, s.db, session.ID, s.clock.Now()); err != nil {
			return sent, err
		}
		sent++
		s.obsMetrics.RecordRecoveryEmail()
	}
	return sent, nil
}

func (s *Service) sendReminder(ctx context.Context, session *domain.CartSession) error {
	var body bytes.Buffer
	if err := recoveryTemplate.Execute(&body, map[string]string{
		"Campaign": session.UTMCampaign,
	}); err != nil {
		return err
	}
	return s.email.Send(ctx, []string{session.Email}, "Your PageScope audit is waiting", body.String())
}

func normalizeEmail(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t") {
		return ""
	}
	return value
}
