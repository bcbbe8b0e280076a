package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/waitlist/domain"
	waitlistrepo "github.com/pagescope/pagescope/internal/waitlist/repository"
	waitlistservice "github.com/pagescope/pagescope/internal/waitlist/service"
	"github.com/pagescope/pagescope/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*waitlistservice.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_waitlist_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`CREATE TABLE waitlist_entries (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			source TEXT,
			created_at TIMESTAMP NOT NULL
		)`).Error)

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := waitlistservice.NewService(waitlistservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  waitlistrepo.Provide(),
	})
	return svc, fakeClock
}

func TestSignup(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Signup(context.Background(), domain.SignupRequest{
		Email:  "Visitor@Example.com",
		Source: "homepage",
	})
	require.NoError(t, err)
	require.Equal(t, "visitor@example.com", resp.Email)
	require.False(t, resp.AlreadySubscribed)
}

func TestSignupDuplicateIsSuccess(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Signup(context.Background(), domain.SignupRequest{Email: "visitor@example.com"})
	require.NoError(t, err)

	resp, err := svc.Signup(context.Background(), domain.SignupRequest{Email: "VISITOR@example.com"})
	require.NoError(t, err)
	require.True(t, resp.AlreadySubscribed)
}

func TestSignupInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	for _, addr := range []string{"", "plain", "@example.com", "user@", "a b@example.com"} {
		_, err := svc.Signup(context.Background(), domain.SignupRequest{Email: addr})
		require.ErrorIs(t, err, domain.ErrInvalidEmail, "email %q", addr)
	}
}

func TestListPaginates(t *testing.T) {
	svc, fakeClock := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Signup(context.Background(), domain.SignupRequest{
			Email: fmt.Sprintf("visitor%d@example.com", i),
		})
		require.NoError(t, err)
		fakeClock.Advance(time.Minute)
	}

	resp, err := svc.List(context.Background(), domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 3},
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	require.True(t, resp.HasMore)
	require.Equal(t, "visitor4@example.com", resp.Entries[0].Email)

	resp, err = svc.List(context.Background(), domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 3, PageToken: resp.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)
	require.False(t, resp.HasMore)
}
