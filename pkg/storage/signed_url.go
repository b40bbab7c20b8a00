package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the metadata carried by a signed token.
type TokenClaims struct {
	Owner string
	Path  string
	// ExpiresAt is zero for tokens that never expire.
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates HMAC-signed tokens pointing at stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer. A ttl of zero issues tokens that never expire.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing owner and relPath.
func (s *SignedURLSigner) Generate(owner, relPath string) (string, time.Time, error) {
	if owner == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("owner and path required")
	}
	if strings.Contains(owner, ".") {
		return "", time.Time{}, fmt.Errorf("owner must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	var expiresAt time.Time
	exp := int64(0)
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
		exp = expiresAt.Unix()
	}
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	ts := strconv.FormatInt(exp, 10)
	token := strings.Join([]string{owner, ts, encodedPath, s.sign(owner, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns its claims.
// When allowExpired is true, the expiry check is skipped (used by cleanup routines).
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return TokenClaims{}, ErrInvalidToken
	}
	owner, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(owner, ts, encodedPath)), []byte(signature)) {
		return TokenClaims{}, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: decode path: %v", ErrInvalidToken, err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: bad timestamp", ErrInvalidToken)
	}
	claims := TokenClaims{Owner: owner, Path: string(rawPath)}
	if expUnix > 0 {
		claims.ExpiresAt = time.Unix(expUnix, 0)
		if !allowExpired && s.now().After(claims.ExpiresAt) {
			return claims, ErrTokenExpired
		}
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(owner, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(owner + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
