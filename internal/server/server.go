package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pagescope/pagescope/internal/cart"
	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	"github.com/pagescope/pagescope/internal/checkout"
	checkoutdomain "github.com/pagescope/pagescope/internal/checkout/domain"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/config"
	"github.com/pagescope/pagescope/internal/consent"
	consentdomain "github.com/pagescope/pagescope/internal/consent/domain"
	"github.com/pagescope/pagescope/internal/migration"
	obslogger "github.com/pagescope/pagescope/internal/observability/logger"
	obsmetrics "github.com/pagescope/pagescope/internal/observability/metrics"
	obstracing "github.com/pagescope/pagescope/internal/observability/tracing"
	"github.com/pagescope/pagescope/internal/payment"
	paymentdomain "github.com/pagescope/pagescope/internal/payment/domain"
	"github.com/pagescope/pagescope/internal/providers/email"
	"github.com/pagescope/pagescope/internal/ratelimit"
	"github.com/pagescope/pagescope/internal/referral"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	"github.com/pagescope/pagescope/internal/scheduler"
	"github.com/pagescope/pagescope/internal/survey"
	surveydomain "github.com/pagescope/pagescope/internal/survey/domain"
	"github.com/pagescope/pagescope/internal/waitlist"
	waitlistdomain "github.com/pagescope/pagescope/internal/waitlist/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	email.Module,
	migration.Module,
	referral.Module,
	payment.Module,
	checkout.Module,
	cart.Module,
	waitlist.Module,
	survey.Module,
	consent.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           cfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(cfg, httpMetrics, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	clock         clock.Clock
	referralSvc   referraldomain.Service
	webhookSvc    paymentdomain.Service
	checkoutSvc   checkoutdomain.Service
	cartSvc       cartdomain.Service
	waitlistSvc   waitlistdomain.Service
	surveySvc     surveydomain.Service
	consentSvc    consentdomain.Service
	publicLimiter *ratelimit.PublicLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Clock         clock.Clock
	ReferralSvc   referraldomain.Service
	WebhookSvc    paymentdomain.Service
	CheckoutSvc   checkoutdomain.Service
	CartSvc       cartdomain.Service
	WaitlistSvc   waitlistdomain.Service
	SurveySvc     surveydomain.Service
	ConsentSvc    consentdomain.Service
	PublicLimiter *ratelimit.PublicLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		clock:         p.Clock,
		referralSvc:   p.ReferralSvc,
		webhookSvc:    p.WebhookSvc,
		checkoutSvc:   p.CheckoutSvc,
		cartSvc:       p.CartSvc,
		waitlistSvc:   p.WaitlistSvc,
		surveySvc:     p.SurveySvc,
		consentSvc:    p.ConsentSvc,
		publicLimiter: p.PublicLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")
	if s.publicLimiter != nil {
		api.Use(s.publicLimiter.Middleware())
	}

	api.POST("/waitlist", s.HandleWaitlistSignup)
	api.POST("/cart/track", s.HandleCartTrack)
	api.POST("/checkout/session", s.HandleCreateCheckoutSession)
	api.POST("/survey", s.HandleSurveySubmit)
	api.POST("/consent", s.HandleConsentRecord)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/referral/codes", s.HandleCreateReferralCode)
	admin.GET("/referral/codes", s.HandleListReferralCodes)
	admin.GET("/referral/codes/:code", s.HandleGetReferralCode)
	admin.GET("/referral/codes/:code/conversions", s.HandleListReferralConversions)
	admin.GET("/waitlist", s.HandleListWaitlist)
	admin.POST("/campaigns/token", s.HandleMintCampaignToken)
}
