package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	obsmetrics "github.com/pagescope/pagescope/internal/observability/metrics"
	"github.com/pagescope/pagescope/internal/waitlist/domain"
	"github.com/pagescope/pagescope/pkg/db"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("waitlist.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Signup records the email. A duplicate signup is reported as success so
// the public form never leaks whether an address is already subscribed.
func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (domain.SignupResponse, error) {
	addr := normalizeEmail(req.Email)
	if addr == "" {
		return domain.SignupResponse{}, domain.ErrInvalidEmail
	}

	entry := domain.WaitlistEntry{
		ID:        s.genID.Generate(),
		Email:     addr,
		Source:    strings.TrimSpace(req.Source),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.SignupResponse{Email: addr, AlreadySubscribed: true}, nil
		}
		return domain.SignupResponse{}, err
	}

	s.obsMetrics.RecordWaitlistSignup()
	return domain.SignupResponse{Email: addr}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := req.Pagination
	page.PageSize = pageSize

	items, err := s.repo.List(ctx, s.db, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(entry *domain.WaitlistEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.WaitlistEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func normalizeEmail(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	at := strings.Index(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t") {
		return ""
	}
	return value
}
