package scheduler

import (
	"context"
	"fmt"
	"time"

	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	CartSvc cartdomain.Service
	Locker  *ratelimit.Locker `optional:"true"`
	Config  Config            `optional:"true"`
}

// Scheduler runs the periodic background jobs. Today that is the
// abandoned-cart sweep; the lock keeps one instance at a time running it.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	cartSvc cartdomain.Service
	locker  *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.CartSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     cfg,
		clock:   p.Clock,
		cartSvc: p.CartSvc,
		locker:  p.Locker,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "cart_sweep", s.cfg.JobTimeout, s.CartSweepJob)
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	key := fmt.Sprintf("pagescope:lock:%s", name)
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		// Lock storage being down must not stop the job on a
		// single-instance deployment.
		s.log.Warn("job lock unavailable, running unlocked",
			zap.String("job", name),
			zap.Error(err),
		)
	} else if !acquired {
		s.log.Debug("job held by another instance", zap.String("job", name))
		return nil
	}
	if token != "" {
		defer func() {
			if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key, token); releaseErr != nil {
				s.log.Warn("job lock release failed",
					zap.String("job", name),
					zap.Error(releaseErr),
				)
			}
		}()
	}

	start := s.clock.Now()
	err = fn(ctx)
	if err != nil {
		s.log.Warn("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", s.clock.Now().Sub(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) CartSweepJob(ctx context.Context) error {
	sent, err := s.cartSvc.SendRecoveryReminders(ctx)
	if err != nil {
		return err
	}
	if sent > 0 {
		s.log.Info("cart sweep sent reminders", zap.Int("sent", sent))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
