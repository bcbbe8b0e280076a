package utmtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token_invalid")
	ErrTokenExpired = errors.New("token_expired")
)

// Signer mints and verifies the HMAC tokens that gate the purchase flow.
// A token binds a campaign value to an expiry; anything else about the
// visit stays out of the token.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign produces "base64url(campaign|expiry).base64url(hmac)".
func (s *Signer) Sign(campaign string, expiresAt time.Time) (string, error) {
	campaign = strings.TrimSpace(campaign)
	if campaign == "" {
		return "", ErrTokenInvalid
	}
	if strings.Contains(campaign, "|") {
		return "", ErrTokenInvalid
	}

	payload := fmt.Sprintf("%s|%d", campaign, expiresAt.Unix())
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.signature(encoded), nil
}

// Verify checks the signature before looking at the payload, so a tampered
// expiry reads as invalid rather than expired.
func (s *Signer) Verify(token string, now time.Time) (string, error) {
	token = strings.TrimSpace(token)
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" {
		return "", ErrTokenInvalid
	}

	if !hmac.Equal([]byte(sig), []byte(s.signature(encoded))) {
		return "", ErrTokenInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenInvalid
	}
	campaign, expiryRaw, ok := strings.Cut(string(raw), "|")
	if !ok || campaign == "" {
		return "", ErrTokenInvalid
	}
	expiry, err := strconv.ParseInt(expiryRaw, 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if now.After(time.Unix(expiry, 0)) {
		return "", ErrTokenExpired
	}
	return campaign, nil
}

func (s *Signer) signature(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
