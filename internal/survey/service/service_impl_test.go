package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/survey/domain"
	surveyrepo "github.com/pagescope/pagescope/internal/survey/repository"
	surveyservice "github.com/pagescope/pagescope/internal/survey/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*surveyservice.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_survey_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`CREATE TABLE survey_responses (
			id BIGINT PRIMARY KEY,
			sale_ref TEXT NOT NULL UNIQUE,
			score INTEGER NOT NULL,
			answers TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`).Error)

	node, err := snowflake.NewNode(10)
	require.NoError(t, err)

	svc := surveyservice.NewService(surveyservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  surveyrepo.Provide(),
	})
	return svc, db
}

func TestSubmit(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Submit(context.Background(), domain.SubmitRequest{
		SaleRef: "cs_1",
		Score:   9,
		Answers: map[string]any{"source": "search"},
	})
	require.NoError(t, err)
	require.Equal(t, 9, resp.Score)
	require.JSONEq(t, `{"source":"search"}`, string(resp.Answers))
}

func TestSubmitReplacesPreviousResponse(t *testing.T) {
	svc, db := newTestService(t)

	first, err := svc.Submit(context.Background(), domain.SubmitRequest{SaleRef: "cs_1", Score: 4})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), domain.SubmitRequest{SaleRef: "cs_1", Score: 8})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 8, second.Score)

	var count int64
	require.NoError(t, db.Model(&domain.SurveyResponse{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{SaleRef: " ", Score: 5})
	require.ErrorIs(t, err, domain.ErrInvalidSaleRef)

	_, err = svc.Submit(context.Background(), domain.SubmitRequest{SaleRef: "cs_1", Score: 11})
	require.ErrorIs(t, err, domain.ErrInvalidScore)

	_, err = svc.Submit(context.Background(), domain.SubmitRequest{SaleRef: "cs_1", Score: -1})
	require.ErrorIs(t, err, domain.ErrInvalidScore)
}
