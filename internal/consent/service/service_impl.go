package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/consent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("consent.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (domain.ConsentRecord, error) {
	visitorID := strings.TrimSpace(req.VisitorID)
	if visitorID == "" {
		return domain.ConsentRecord{}, domain.ErrInvalidVisitor
	}

	prefs, err := json.Marshal(req.Prefs)
	if err != nil {
		return domain.ConsentRecord{}, err
	}

	now := s.clock.Now()
	record := domain.ConsentRecord{
		ID:        s.genID.Generate(),
		VisitorID: visitorID,
		Prefs:     datatypes.JSON(prefs),
		UserAgent: strings.TrimSpace(req.UserAgent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &record); err != nil {
		return domain.ConsentRecord{}, err
	}

	stored, err := s.repo.FindByVisitor(ctx, s.db, visitorID)
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	if stored == nil {
		return record, nil
	}
	return *stored, nil
}
