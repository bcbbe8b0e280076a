package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/cart/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, session *domain.CartSession) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO cart_sessions (
			id, email, utm_campaign, sale_ref, stage,
			reminder_count, last_seen_at, last_reminder_at, recovered_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email, utm_campaign) DO UPDATE SET
			sale_ref = excluded.sale_ref,
			stage = excluded.stage,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`,
		session.ID,
		session.Email,
		session.UTMCampaign,
		session.SaleRef,
		session.Stage,
		session.ReminderCount,
		session.LastSeenAt,
		session.LastReminderAt,
		session.RecoveredAt,
		session.CreatedAt,
		session.UpdatedAt,
	).Error
}

func (r *repo) FindByEmailCampaign(ctx context.Context, db *gorm.DB, email, campaign string) (*domain.CartSession, error) {
	var session domain.CartSession
	err := db.WithContext(ctx).
		Model(&domain.CartSession{}).
		Where("email = ? AND utm_campaign = ?", email, campaign).
		Limit(1).
		Find(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, nil
	}
	return &session, nil
}

func (r *repo) MarkRecovered(ctx context.Context, db *gorm.DB, email, saleRef string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE cart_sessions
		 SET stage = ?, sale_ref = ?, recovered_at = ?, updated_at = ?
		 WHERE email = ? AND stage != ?`,
		domain.StageCompleted,
		saleRef,
		at,
		at,
		email,
		domain.StageCompleted,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FindAbandoned(ctx context.Context, db *gorm.DB, seenBefore time.Time, maxReminders int, limit int) ([]*domain.CartSession, error) {
	var sessions []*domain.CartSession
	err := db.WithContext(ctx).
		Model(&domain.CartSession{}).
		Where("stage != ?", domain.StageCompleted).
		Where("last_seen_at < ?", seenBefore).
		Where("reminder_count < ?", maxReminders).
		Where("last_reminder_at IS NULL OR last_reminder_at < ?", seenBefore).
		Order("last_seen_at asc").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repo) IncrementReminder(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cart_sessions
		 SET reminder_count = reminder_count + 1, last_reminder_at = ?, updated_at = ?
		 WHERE id = ?`,
		at,
		at,
		id,
	).Error
}
