package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	"github.com/pagescope/pagescope/internal/clock"
	paymentdomain "github.com/pagescope/pagescope/internal/payment/domain"
	paymentrepo "github.com/pagescope/pagescope/internal/payment/repository"
	paymentservice "github.com/pagescope/pagescope/internal/payment/service"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeReferralService struct {
	code        referraldomain.ReferralCode
	getCodeErr  error
	processErr  error
	conversions []referraldomain.ConversionInput
}

func (f *fakeReferralService) CreateCode(ctx context.Context, req referraldomain.CreateCodeRequest) (referraldomain.ReferralCode, error) {
	return referraldomain.ReferralCode{}, errors.New("unexpected call")
}

func (f *fakeReferralService) GetCode(ctx context.Context, req referraldomain.GetCodeRequest) (referraldomain.ReferralCode, error) {
	if f.getCodeErr != nil {
		return referraldomain.ReferralCode{}, f.getCodeErr
	}
	return f.code, nil
}

func (f *fakeReferralService) ListCodes(ctx context.Context, req referraldomain.ListCodesRequest) (referraldomain.ListCodesResponse, error) {
	return referraldomain.ListCodesResponse{}, errors.New("unexpected call")
}

func (f *fakeReferralService) ListConversions(ctx context.Context, req referraldomain.ListConversionsRequest) (referraldomain.ListConversionsResponse, error) {
	return referraldomain.ListConversionsResponse{}, errors.New("unexpected call")
}

func (f *fakeReferralService) ProcessConversion(ctx context.Context, input referraldomain.ConversionInput) (referraldomain.ConversionOutcome, error) {
	if f.processErr != nil {
		return referraldomain.ConversionOutcome{}, f.processErr
	}
	f.conversions = append(f.conversions, input)
	return referraldomain.ConversionOutcome{
		ConversionID: fmt.Sprintf("%d", len(f.conversions)),
		Status:       referraldomain.PayoutStatusPaid,
	}, nil
}

type recoveredCall struct {
	Email   string
	SaleRef string
}

type fakeCartService struct {
	recovered    []recoveredCall
	recoveredErr error
}

func (f *fakeCartService) Track(ctx context.Context, input cartdomain.TrackInput) (*cartdomain.CartSession, error) {
	return nil, errors.New("unexpected call")
}

func (f *fakeCartService) MarkRecovered(ctx context.Context, email, saleRef string) error {
	if f.recoveredErr != nil {
		return f.recoveredErr
	}
	f.recovered = append(f.recovered, recoveredCall{Email: email, SaleRef: saleRef})
	return nil
}

func (f *fakeCartService) SendRecoveryReminders(ctx context.Context) (int, error) {
	return 0, errors.New("unexpected call")
}

type testEnv struct {
	db       *gorm.DB
	svc      *paymentservice.Service
	referral *fakeReferralService
	cart     *fakeCartService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_payment_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(`CREATE TABLE payment_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		sale_ref TEXT,
		payload TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		UNIQUE (provider, provider_event_id)
	)`).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	referral := &fakeReferralService{
		code: referraldomain.ReferralCode{
			Code:         "ACME10",
			OwnerSaleRef: "cs_owner_1",
			Active:       true,
		},
	}
	cart := &fakeCartService{}

	svc := paymentservice.NewService(paymentservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Repo:        paymentrepo.Provide(),
		ReferralSvc: referral,
		CartSvc:     cart,
	})

	return &testEnv{db: db, svc: svc, referral: referral, cart: cart}
}

func checkoutEvent(eventID, saleRef string) *paymentdomain.PaymentEvent {
	return &paymentdomain.PaymentEvent{
		Provider:             "stripe",
		ProviderEventID:      eventID,
		SaleRef:              saleRef,
		Type:                 paymentdomain.EventTypeCheckoutCompleted,
		Email:                "buyer@example.com",
		AmountCents:          25_000,
		DiscountAppliedCents: 2_500,
		Currency:             "USD",
		ReferralCode:         "ACME10",
		UTMCampaign:          "spring_launch",
		OccurredAt:           time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
		RawPayload:           []byte(`{"id":"evt"}`),
	}
}

func TestProcessEventCheckoutCompleted(t *testing.T) {
	env := setupEnv(t)

	if err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1")); err != nil {
		t.Fatalf("process event: %v", err)
	}

	if len(env.referral.conversions) != 1 {
		t.Fatalf("expected 1 conversion, got %d", len(env.referral.conversions))
	}
	conv := env.referral.conversions[0]
	if conv.Code != "ACME10" {
		t.Fatalf("expected code ACME10, got %s", conv.Code)
	}
	if conv.SaleRef != "cs_sale_1" {
		t.Fatalf("expected sale ref cs_sale_1, got %s", conv.SaleRef)
	}
	if conv.SaleAmountCents != 25_000 {
		t.Fatalf("expected sale amount 25000, got %d", conv.SaleAmountCents)
	}
	if conv.DiscountAppliedCents != 2_500 {
		t.Fatalf("expected discount 2500, got %d", conv.DiscountAppliedCents)
	}
	if conv.ReferrerPaymentRef != "cs_owner_1" {
		t.Fatalf("expected referrer payment ref cs_owner_1, got %s", conv.ReferrerPaymentRef)
	}

	if len(env.cart.recovered) != 1 {
		t.Fatalf("expected 1 cart recovery, got %d", len(env.cart.recovered))
	}
	if env.cart.recovered[0].Email != "buyer@example.com" || env.cart.recovered[0].SaleRef != "cs_sale_1" {
		t.Fatalf("unexpected cart recovery call: %+v", env.cart.recovered[0])
	}

	var record paymentdomain.EventRecord
	if err := env.db.Model(&paymentdomain.EventRecord{}).
		Where("provider = ? AND provider_event_id = ?", "stripe", "evt_1").
		Limit(1).Find(&record).Error; err != nil {
		t.Fatalf("load event record: %v", err)
	}
	if record.ID == 0 {
		t.Fatalf("expected event record")
	}
	if record.ProcessedAt == nil {
		t.Fatalf("expected event marked processed")
	}
	if record.EventType != paymentdomain.EventTypeCheckoutCompleted {
		t.Fatalf("expected checkout_completed, got %s", record.EventType)
	}
}

func TestProcessEventRedeliveryIsIdempotent(t *testing.T) {
	env := setupEnv(t)

	if err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1"))
	if !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if len(env.referral.conversions) != 1 {
		t.Fatalf("expected 1 conversion after redelivery, got %d", len(env.referral.conversions))
	}

	var count int64
	if err := env.db.Model(&paymentdomain.EventRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event row, got %d", count)
	}
}

func TestProcessEventUnknownCodeDoesNotFailSale(t *testing.T) {
	env := setupEnv(t)
	env.referral.getCodeErr = referraldomain.ErrCodeNotFound

	if err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1")); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if len(env.referral.conversions) != 0 {
		t.Fatalf("expected no conversions, got %d", len(env.referral.conversions))
	}

	record, err := paymentrepo.Provide().FindEvent(context.Background(), env.db, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if record == nil || record.ProcessedAt == nil {
		t.Fatalf("expected event recorded and processed")
	}
}

func TestProcessEventInactiveCodeDoesNotFailSale(t *testing.T) {
	env := setupEnv(t)
	env.referral.processErr = referraldomain.ErrCodeInactive

	if err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1")); err != nil {
		t.Fatalf("process event: %v", err)
	}

	record, err := paymentrepo.Provide().FindEvent(context.Background(), env.db, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if record == nil || record.ProcessedAt == nil {
		t.Fatalf("expected event recorded and processed despite inactive code")
	}
}

func TestProcessEventCartFailureDoesNotBlockPayout(t *testing.T) {
	env := setupEnv(t)
	env.cart.recoveredErr = errors.New("db down")

	if err := env.svc.ProcessEvent(context.Background(), checkoutEvent("evt_1", "cs_sale_1")); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if len(env.referral.conversions) != 1 {
		t.Fatalf("expected conversion despite cart failure, got %d", len(env.referral.conversions))
	}
}

func TestProcessEventWithoutReferralCode(t *testing.T) {
	env := setupEnv(t)

	event := checkoutEvent("evt_1", "cs_sale_1")
	event.ReferralCode = ""
	if err := env.svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if len(env.referral.conversions) != 0 {
		t.Fatalf("expected no conversions, got %d", len(env.referral.conversions))
	}
	if len(env.cart.recovered) != 1 {
		t.Fatalf("expected cart recovery, got %d", len(env.cart.recovered))
	}
}

func TestProcessEventRefunded(t *testing.T) {
	env := setupEnv(t)

	event := &paymentdomain.PaymentEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_refund",
		SaleRef:         "ch_1",
		Type:            paymentdomain.EventTypeRefunded,
		AmountCents:     1_200,
		Currency:        "USD",
		OccurredAt:      time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		RawPayload:      []byte(`{"id":"evt_refund"}`),
	}
	if err := env.svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if len(env.referral.conversions) != 0 || len(env.cart.recovered) != 0 {
		t.Fatalf("refund must not touch referral or cart")
	}

	record, err := paymentrepo.Provide().FindEvent(context.Background(), env.db, "stripe", "evt_refund")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if record == nil || record.ProcessedAt == nil {
		t.Fatalf("expected refund recorded and processed")
	}
}

func TestProcessEventValidation(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name    string
		mutate  func(event *paymentdomain.PaymentEvent)
		wantErr error
	}{
		{
			name:    "missing provider",
			mutate:  func(event *paymentdomain.PaymentEvent) { event.Provider = " " },
			wantErr: paymentdomain.ErrInvalidProvider,
		},
		{
			name:    "missing event id",
			mutate:  func(event *paymentdomain.PaymentEvent) { event.ProviderEventID = "" },
			wantErr: paymentdomain.ErrInvalidEvent,
		},
		{
			name:    "missing sale ref",
			mutate:  func(event *paymentdomain.PaymentEvent) { event.SaleRef = "" },
			wantErr: paymentdomain.ErrInvalidEvent,
		},
		{
			name:    "negative amount",
			mutate:  func(event *paymentdomain.PaymentEvent) { event.AmountCents = -1 },
			wantErr: paymentdomain.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := checkoutEvent("evt_bad", "cs_sale_bad")
			tt.mutate(event)
			err := env.svc.ProcessEvent(context.Background(), event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := env.svc.ProcessEvent(context.Background(), nil); !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event for nil")
	}
}
