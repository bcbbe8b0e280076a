package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"gorm.io/gorm"
)

type WaitlistEntry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Source    string       `gorm:"type:text" json:"source,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (WaitlistEntry) TableName() string { return "waitlist_entries" }

type SignupRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

type SignupResponse struct {
	Email string `json:"email"`

	// AlreadySubscribed reports a duplicate signup, which is not an error.
	AlreadySubscribed bool `json:"already_subscribed"`
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Entries []WaitlistEntry `json:"entries"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *WaitlistEntry) error
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*WaitlistEntry, error)
}

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (SignupResponse, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var ErrInvalidEmail = errors.New("invalid_email")
