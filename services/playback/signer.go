package playback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed playback token")
	ErrBadSignature   = errors.New("invalid playback token signature")
	ErrTokenExpired   = errors.New("playback token expired")
)

// Grant is the claim set embedded in a playback token. It binds one
// principal to one video so tokens cannot be shared across accounts.
type Grant struct {
	VideoID       uint
	TenantID      uint
	PrincipalType string
	PrincipalID   uint
	ExpiresAt     time.Time
}

// Signer mints and verifies short-lived playback tokens. Tokens are
// stateless: the gate endpoint re-checks nothing but the signature, the
// expiry and the video's current status.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a signed token for the given video and principal.
func (s *Signer) Sign(videoID, tenantID uint, principalType string, principalID uint) (string, time.Time, error) {
	if videoID == 0 || principalID == 0 || principalType == "" {
		return "", time.Time{}, fmt.Errorf("video and principal required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	payload := encodePayload(videoID, tenantID, principalType, principalID, expiresAt.Unix())
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature, expiresAt, nil
}

// Verify validates a token and returns the embedded grant.
func (s *Signer) Verify(token string) (Grant, error) {
	idx := strings.LastIndex(token, ".")
	if idx < 0 {
		return Grant{}, ErrMalformedToken
	}
	payload, signature := token[:idx], token[idx+1:]

	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Grant{}, ErrBadSignature
	}

	grant, err := decodePayload(payload)
	if err != nil {
		return Grant{}, err
	}
	if time.Now().After(grant.ExpiresAt) {
		return Grant{}, ErrTokenExpired
	}
	return grant, nil
}

func encodePayload(videoID, tenantID uint, principalType string, principalID uint, expUnix int64) string {
	return strings.Join([]string{
		strconv.FormatUint(uint64(videoID), 10),
		strconv.FormatUint(uint64(tenantID), 10),
		principalType,
		strconv.FormatUint(uint64(principalID), 10),
		strconv.FormatInt(expUnix, 10),
	}, ".")
}

func decodePayload(payload string) (Grant, error) {
	parts := strings.Split(payload, ".")
	if len(parts) != 5 {
		return Grant{}, ErrMalformedToken
	}
	videoID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}
	tenantID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}
	principalID, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}
	expUnix, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}
	return Grant{
		VideoID:       uint(videoID),
		TenantID:      uint(tenantID),
		PrincipalType: parts[2],
		PrincipalID:   uint(principalID),
		ExpiresAt:     time.Unix(expUnix, 0),
	}, nil
}
