package auth

import (
	"fmt"
	"math"
	"time"

	"github.com/fastertools/atmo/internal/errs"
)

// RawTokenReply is the token endpoint's JSON reply
type RawTokenReply struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// maxLifetime is the longest lifetime a time.Duration can hold, in seconds
const maxLifetime = math.MaxInt64 / int64(time.Second)

// Token is an access/refresh token pair with an absolute expiry.
// A Token is never modified; refreshing yields a new one.
type Token struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// AccessToken returns the bearer credential
func (t Token) AccessToken() string { return t.accessToken }

// RefreshToken returns the credential used to obtain the next token
func (t Token) RefreshToken() string { return t.refreshToken }

// ExpiresAt returns the instant the access token stops being valid
func (t Token) ExpiresAt() time.Time { return t.expiresAt }

// ExpiredAt reports whether the token is expired at now
func (t Token) ExpiredAt(now time.Time) bool {
	return !t.expiresAt.After(now)
}

// String redacts both credentials
func (t Token) String() string {
	return fmt.Sprintf("Token{access=%s refresh=%s expires=%s}",
		redact(t.accessToken), redact(t.refreshToken), t.expiresAt.Format(time.RFC3339))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// nowFunc is replaced in tests
var nowFunc = time.Now

// DecodeToken converts a token reply into a Token expiring expires_in
// seconds from now. A negative lifetime is rejected; lifetimes longer than
// a time.Duration can express are capped at about 292 years.
func DecodeToken(raw RawTokenReply) (Token, error) {
	return decodeTokenAt(raw, nowFunc())
}

func decodeTokenAt(raw RawTokenReply, now time.Time) (Token, error) {
	if raw.ExpiresIn < 0 {
		return Token{}, errs.Lifetime("decode token", raw.ExpiresIn)
	}
	lifetime := min(raw.ExpiresIn, maxLifetime)
	return Token{
		accessToken:  raw.AccessToken,
		refreshToken: raw.RefreshToken,
		expiresAt:    now.Add(time.Duration(lifetime) * time.Second),
	}, nil
}
