package service

import (
	"testing"

	"github.com/pagescope/pagescope/internal/referral/domain"
)

func TestPayoutStatusFromResult(t *testing.T) {
	cases := []struct {
		name   string
		result domain.PayoutResult
		want   domain.PayoutStatus
	}{
		{
			name:   "failure",
			result: domain.PayoutResult{Success: false, PendingCents: 50_00},
			want:   domain.PayoutStatusFailed,
		},
		{
			name:   "full refund",
			result: domain.PayoutResult{Success: true, AmountPaidCents: 50_00},
			want:   domain.PayoutStatusPaid,
		},
		{
			name:   "partial refund still counts as paid",
			result: domain.PayoutResult{Success: true, AmountPaidCents: 30_00, PendingCents: 20_00},
			want:   domain.PayoutStatusPaid,
		},
		{
			name:   "manual remainder",
			result: domain.PayoutResult{Success: true, PendingCents: 50_00},
			want:   domain.PayoutStatusPending,
		},
		{
			name:   "no money moved and none owed",
			result: domain.PayoutResult{Success: true},
			want:   domain.PayoutStatusSkipped,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := payoutStatus(tc.result); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
