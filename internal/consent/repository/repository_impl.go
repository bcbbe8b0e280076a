package repository

import (
	"context"

	"github.com/pagescope/pagescope/internal/consent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.ConsentRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consent_records (id, visitor_id, prefs, user_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (visitor_id) DO UPDATE SET
			prefs = excluded.prefs,
			user_agent = excluded.user_agent,
			updated_at = excluded.updated_at`,
		record.ID,
		record.VisitorID,
		record.Prefs,
		record.UserAgent,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByVisitor(ctx context.Context, db *gorm.DB, visitorID string) (*domain.ConsentRecord, error) {
	var record domain.ConsentRecord
	err := db.WithContext(ctx).
		Model(&domain.ConsentRecord{}).
		Where("visitor_id = ?", visitorID).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}
