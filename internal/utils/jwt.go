package utils // package utils provides helpers for token creation, hashing and random identifiers

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding of random bytes and digests
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken is the raw value handed to the client; only its hash is stored.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// Claims is the identity carried by an access token.
type Claims struct {
	UserID uint64
	Role   string
	Email  string
}

// ErrInvalidToken is returned by ParseAccessToken for any token that does
// not verify or lacks the expected claims.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT.  The subject is the user ID
// in decimal; role and email travel as private claims.
func NewAccessToken(secret string, c Claims, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(c.UserID, 10),
		"role":  c.Role,
		"email": c.Email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and extracts the claims.  Only
// HMAC signing methods are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	switch sub := mc["sub"].(type) {
	case string:
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		c.UserID = id
	case float64:
		// numeric JSON values decode as float64
		c.UserID = uint64(sub)
	default:
		return Claims{}, ErrInvalidToken
	}
	c.Role, _ = mc["role"].(string)
	c.Email, _ = mc["email"].(string)
	if c.UserID == 0 || c.Role == "" {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// NewRefreshToken returns a random token and its expiration time.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := RandomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as hex.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns n bytes of crypto/rand output encoded as 2n lowercase
// hex characters.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
