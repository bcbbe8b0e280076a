package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/survey/domain"
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
		log:   p.Log.Named("survey.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SurveyResponse, error) {
	saleRef := strings.TrimSpace(req.SaleRef)
	if saleRef == "" {
		return domain.SurveyResponse{}, domain.ErrInvalidSaleRef
	}
	if req.Score < 0 || req.Score > 10 {
		return domain.SurveyResponse{}, domain.ErrInvalidScore
	}

	var answers datatypes.JSON
	if len(req.Answers) > 0 {
		raw, err := json.Marshal(req.Answers)
		if err != nil {
			return domain.SurveyResponse{}, err
		}
		answers = datatypes.JSON(raw)
	}

	now := s.clock.Now()
	response := domain.SurveyResponse{
		ID:        s.genID.Generate(),
		SaleRef:   saleRef,
		Score:     req.Score,
		Answers:   answers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &response); err != nil {
		return domain.SurveyResponse{}, err
	}

	stored, err := s.repo.FindBySale(ctx, s.db, saleRef)
	if err != nil {
		return domain.SurveyResponse{}, err
	}
	if stored == nil {
		return response, nil
	}
	return *stored, nil
}
