package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/config"
	"github.com/pagescope/pagescope/internal/referral/domain"
	referralrepo "github.com/pagescope/pagescope/internal/referral/repository"
	referralservice "github.com/pagescope/pagescope/internal/referral/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type refundCall struct {
	PaymentRef   string
	AmountCents  int64
	ConversionID string
	Reason       string
}

type fakeRefunder struct {
	capacity    int64
	capacityErr error
	refundErr   error
	calls       []refundCall
}

func (f *fakeRefunder) RefundableAmount(ctx context.Context, paymentRef string) (int64, error) {
	if f.capacityErr != nil {
		return 0, f.capacityErr
	}
	return f.capacity, nil
}

func (f *fakeRefunder) CreateRefund(ctx context.Context, paymentRef string, amountCents int64, conversionID, reason string) (string, int64, error) {
	if f.refundErr != nil {
		return "", 0, f.refundErr
	}
	f.calls = append(f.calls, refundCall{
		PaymentRef:   paymentRef,
		AmountCents:  amountCents,
		ConversionID: conversionID,
		Reason:       reason,
	})
	return fmt.Sprintf("re_%d", len(f.calls)), amountCents, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE referral_codes (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			owner_sale_ref TEXT NOT NULL,
			company_name TEXT,
			tier TEXT NOT NULL,
			discount_type TEXT NOT NULL,
			discount_amount_cents BIGINT NOT NULL DEFAULT 0,
			discount_percent REAL NOT NULL DEFAULT 0,
			reward_type TEXT NOT NULL,
			reward_amount_cents BIGINT NOT NULL DEFAULT 0,
			reward_percent REAL NOT NULL DEFAULT 0,
			reward_trigger TEXT NOT NULL DEFAULT 'first',
			max_reward_total_cents BIGINT,
			max_reward_per_period_cents BIGINT,
			reward_period_days INTEGER,
			total_reward_paid_cents BIGINT NOT NULL DEFAULT 0,
			period_reward_paid_cents BIGINT NOT NULL DEFAULT 0,
			period_start_at TIMESTAMP,
			pending_payout_cents BIGINT NOT NULL DEFAULT 0,
			redemption_count BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE referral_conversions (
			id BIGINT PRIMARY KEY,
			code_id BIGINT NOT NULL,
			sale_ref TEXT NOT NULL,
			sale_amount_cents BIGINT NOT NULL DEFAULT 0,
			discount_applied_cents BIGINT NOT NULL DEFAULT 0,
			reward_earned_cents BIGINT NOT NULL DEFAULT 0,
			reward_paid_cents BIGINT NOT NULL DEFAULT 0,
			reward_pending_cents BIGINT NOT NULL DEFAULT 0,
			payout_status TEXT NOT NULL DEFAULT 'pending',
			payout_method TEXT,
			payout_reason TEXT,
			refund_ref TEXT,
			error_detail TEXT,
			paid_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (code_id, sale_ref)
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	return db
}

type testEnv struct {
	db       *gorm.DB
	svc      *referralservice.Service
	clock    *clock.FakeClock
	refunder *fakeRefunder
	node     *snowflake.Node
	codes    domain.CodeRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder, err := config.NewReferralPolicyHolder()
	if err != nil {
		t.Fatalf("policy holder: %v", err)
	}

	fake := &fakeRefunder{capacity: 1_000_00}
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := referralservice.NewService(referralservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		Codes:       referralrepo.ProvideCodeRepository(),
		Conversions: referralrepo.ProvideConversionRepository(),
		Refunds:     fake,
		Policy:      holder,
	})

	return &testEnv{
		db:       db,
		svc:      svc,
		clock:    fakeClock,
		refunder: fake,
		node:     node,
		codes:    referralrepo.ProvideCodeRepository(),
	}
}

func (e *testEnv) seedCode(t *testing.T, code domain.ReferralCode) domain.ReferralCode {
	t.Helper()

	if code.ID == 0 {
		code.ID = e.node.Generate()
	}
	if code.Code == "" {
		code.Code = fmt.Sprintf("CODE%d", code.ID)
	}
	if code.OwnerSaleRef == "" {
		code.OwnerSaleRef = "cs_owner"
	}
	if code.Tier == "" {
		code.Tier = domain.TierStandard
	}
	if code.DiscountType == "" {
		code.DiscountType = domain.DiscountPercent
	}
	if code.RewardTrigger == "" {
		code.RewardTrigger = domain.TriggerEvery
	}
	code.Active = true
	now := e.clock.Now()
	code.CreatedAt = now
	code.UpdatedAt = now

	if err := e.codes.Insert(context.Background(), e.db, &code); err != nil {
		t.Fatalf("seed code: %v", err)
	}
	return code
}

func (e *testEnv) reloadCode(t *testing.T, id snowflake.ID) domain.ReferralCode {
	t.Helper()

	code, err := e.codes.FindByID(context.Background(), e.db, id)
	if err != nil {
		t.Fatalf("reload code: %v", err)
	}
	if code == nil {
		t.Fatalf("code %s not found", id)
	}
	return *code
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
