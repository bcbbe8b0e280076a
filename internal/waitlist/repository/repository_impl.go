package repository

import (
	"context"
	"time"

	"github.com/pagescope/pagescope/internal/waitlist/domain"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.WaitlistEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO waitlist_entries (id, email, source, created_at)
		 VALUES (?, ?, ?, ?)`,
		entry.ID,
		entry.Email,
		entry.Source,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.WaitlistEntry, error) {
	stmt := db.WithContext(ctx).Model(&domain.WaitlistEntry{})

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.CreatedAt != "" {
			if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
				stmt = stmt.Where("created_at < ?", createdAt)
			}
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var entries []*domain.WaitlistEntry
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
