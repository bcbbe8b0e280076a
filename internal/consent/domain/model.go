package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConsentRecord stores the latest cookie-consent choices for a visitor.
// One row per visitor; a new submission replaces the previous one.
type ConsentRecord struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	VisitorID string         `gorm:"type:text;not null;uniqueIndex" json:"visitor_id"`
	Prefs     datatypes.JSON `gorm:"type:jsonb;not null" json:"prefs"`
	UserAgent string         `gorm:"type:text" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ConsentRecord) TableName() string { return "consent_records" }

type Prefs struct {
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

type RecordRequest struct {
	VisitorID string `json:"visitor_id"`
	Prefs     Prefs  `json:"prefs"`
	UserAgent string `json:"-"`
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, record *ConsentRecord) error
	FindByVisitor(ctx context.Context, db *gorm.DB, visitorID string) (*ConsentRecord, error)
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (ConsentRecord, error)
}

var ErrInvalidVisitor = errors.New("invalid_visitor")
