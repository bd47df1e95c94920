package auth

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
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired or not yet valid")
	ErrTokenSID    = errors.New("session id mismatch")
)

// claims is the signed payload of a host token: which session it grants
// access to and until when.
type claims struct {
	SessionID string
	ExpUnix   int64
}

func (c claims) message() string {
	return c.SessionID + "." + strconv.FormatInt(c.ExpUnix, 10)
}

func sign(secret string, c claims) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(c.message()))
	return mac.Sum(nil)
}

// GenerateHostToken mints the bearer token a host presents when opening its
// event channel. The token is base64url over "sid.exp.hexsig", where the
// signature covers the sid and expiry.
func GenerateHostToken(secret, sessionID string, expUnix int64) (string, error) {
	c := claims{SessionID: sessionID, ExpUnix: expUnix}
	raw := c.message() + "." + hex.EncodeToString(sign(secret, c))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// parseToken decodes the wire form back into claims plus the presented
// signature, without verifying anything.
func parseToken(token string) (claims, []byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return claims{}, nil, ErrTokenFormat
	}
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return claims{}, nil, ErrTokenFormat
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return claims{}, nil, ErrTokenFormat
	}
	sig, err := hex.DecodeString(parts[2])
	if err != nil {
		return claims{}, nil, ErrTokenFormat
	}
	return claims{SessionID: parts[0], ExpUnix: exp}, sig, nil
}

// ValidateHostToken checks a presented token against the secret, the session
// it should be bound to (pass "" to skip that check), and the clock with a
// tolerance of skewSeconds. It returns the embedded session id and expiry.
func ValidateHostToken(secret, token, expectSessionID string, now time.Time, skewSeconds int) (string, int64, error) {
	c, sig, err := parseToken(token)
	if err != nil {
		return "", 0, err
	}
	if expectSessionID != "" && c.SessionID != expectSessionID {
		return "", 0, ErrTokenSID
	}
	if !hmac.Equal(sign(secret, c), sig) {
		return "", 0, ErrTokenSig
	}
	if now.Unix() > c.ExpUnix+int64(skewSeconds) {
		return "", 0, ErrTokenExp
	}
	return c.SessionID, c.ExpUnix, nil
}

// MustToken is a test and tooling helper; it panics instead of returning an
// error.
func MustToken(secret, sessionID string, expUnix int64) string {
	t, err := GenerateHostToken(secret, sessionID, expUnix)
	if err != nil {
		panic(fmt.Sprintf("token error: %v", err))
	}
	return t
}
