package repository

import (
	"context"

	"github.com/pagescope/pagescope/internal/survey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, response *domain.SurveyResponse) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO survey_responses (id, sale_ref, score, answers, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sale_ref) DO UPDATE SET
			score = excluded.score,
			answers = excluded.answers,
			updated_at = excluded.updated_at`,
		response.ID,
		response.SaleRef,
		response.Score,
		response.Answers,
		response.CreatedAt,
		response.UpdatedAt,
	).Error
}

func (r *repo) FindBySale(ctx context.Context, db *gorm.DB, saleRef string) (*domain.SurveyResponse, error) {
	var response domain.SurveyResponse
	err := db.WithContext(ctx).
		Model(&domain.SurveyResponse{}).
		Where("sale_ref = ?", saleRef).
		Limit(1).
		Find(&response).Error
	if err != nil {
		return nil, err
	}
	if response.ID == 0 {
		return nil, nil
	}
	return &response, nil
}
