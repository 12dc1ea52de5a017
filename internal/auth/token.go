package auth

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

// Token errors returned by Verify.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature mismatch")
)

const tokenVersion = "v1"

// TokenAuthority issues and verifies HMAC-SHA256 signed session tokens.
// The signing key comes from configuration, never from source.
type TokenAuthority struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenAuthority creates a token authority with the given signing key
// and token lifetime.
func NewTokenAuthority(key string, ttl time.Duration) *TokenAuthority {
	return &TokenAuthority{
		key: []byte(key),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue creates a signed token for the given subject.
func (a *TokenAuthority) Issue(subject string) string {
	expiry := a.now().Add(a.ttl).Unix()
	payload := fmt.Sprintf("%s.%s.%d",
		tokenVersion,
		base64.RawURLEncoding.EncodeToString([]byte(subject)),
		expiry)
	return payload + "." + a.sign(payload)
}

// Verify checks a token's structure, signature and expiry, returning the
// subject it was issued for.
func (a *TokenAuthority) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != tokenVersion {
		return "", ErrTokenMalformed
	}

	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(a.sign(payload)), []byte(parts[3])) {
		return "", ErrTokenSignature
	}

	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	if a.now().Unix() >= expiry {
		return "", ErrTokenExpired
	}

	subject, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrTokenMalformed
	}
	return string(subject), nil
}

func (a *TokenAuthority) sign(payload string) string {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
