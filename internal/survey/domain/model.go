package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SurveyResponse is the post-purchase survey answer for one sale. A sale
// gets exactly one row; resubmitting replaces the previous answers.
type SurveyResponse struct {
	ID      snowflake.ID   `gorm:"primaryKey" json:"id"`
	SaleRef string         `gorm:"type:text;not null;uniqueIndex" json:"sale_ref"`
	Score   int            `gorm:"not null" json:"score"`
	Answers datatypes.JSON `gorm:"type:jsonb" json:"answers,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SurveyResponse) TableName() string { return "survey_responses" }

type SubmitRequest struct {
	SaleRef string         `json:"sale_ref"`
	Score   int            `json:"score"`
	Answers map[string]any `json:"answers"`
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, response *SurveyResponse) error
	FindBySale(ctx context.Context, db *gorm.DB, saleRef string) (*SurveyResponse, error)
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (SurveyResponse, error)
}

var (
	ErrInvalidSaleRef = errors.New("invalid_sale_ref")
	ErrInvalidScore   = errors.New("invalid_score")
)
