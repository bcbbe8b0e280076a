package utmtoken_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pagescope/pagescope/internal/checkout/utmtoken"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer, err := utmtoken.NewSigner("test-secret")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := signer.Sign("spring_launch", now.Add(time.Hour))
	require.NoError(t, err)

	campaign, err := signer.Verify(token, now)
	require.NoError(t, err)
	require.Equal(t, "spring_launch", campaign)
}

func TestVerifyExpired(t *testing.T) {
	signer, err := utmtoken.NewSigner("test-secret")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := signer.Sign("spring_launch", now.Add(time.Hour))
	require.NoError(t, err)

	_, err = signer.Verify(token, now.Add(2*time.Hour))
	require.ErrorIs(t, err, utmtoken.ErrTokenExpired)
}

func TestVerifyTampered(t *testing.T) {
	signer, err := utmtoken.NewSigner("test-secret")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := signer.Sign("spring_launch", now.Add(time.Hour))
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	forged := strings.Replace(parts[0], "c", "x", 1) + "." + parts[1]
	_, err = signer.Verify(forged, now)
	require.ErrorIs(t, err, utmtoken.ErrTokenInvalid)

	other, err := utmtoken.NewSigner("other-secret")
	require.NoError(t, err)
	_, err = other.Verify(token, now)
	require.ErrorIs(t, err, utmtoken.ErrTokenInvalid)
}

func TestVerifyMalformed(t *testing.T) {
	signer, err := utmtoken.NewSigner("test-secret")
	require.NoError(t, err)

	now := time.Now()
	for _, token := range []string{"", "no-dot", ".", "a.", ".b", "!!!.!!!"} {
		_, err := signer.Verify(token, now)
		require.ErrorIs(t, err, utmtoken.ErrTokenInvalid, "token %q", token)
	}
}

func TestSignRejectsBadCampaign(t *testing.T) {
	signer, err := utmtoken.NewSigner("test-secret")
	require.NoError(t, err)

	_, err = signer.Sign("", time.Now())
	require.ErrorIs(t, err, utmtoken.ErrTokenInvalid)
	_, err = signer.Sign("a|b", time.Now())
	require.ErrorIs(t, err, utmtoken.ErrTokenInvalid)
}
