package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// minSecretBytes is the HS256 key size floor.
const minSecretBytes = 32

var (
	ErrMissingSecret   = errors.New("jwt secret is not configured")
	ErrMalformedSecret = errors.New("jwt secret is not valid base64")
	ErrShortSecret     = fmt.Errorf("jwt secret must decode to at least %d bytes", minSecretBytes)

	// ErrMalformedToken is returned for strings that are not three
	// dot-separated segments.
	ErrMalformedToken = errors.New("malformed token")
)

// Claims are the claims carried by a session token.
type Claims struct {
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// SessionClaims is the caller-supplied part of a session token.
type SessionClaims struct {
	UserID      int64
	Authorities []string
}

// JWTCodec signs and verifies HS256 session tokens. It is purely
// cryptographic and never consults the token store.
type JWTCodec struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewJWTCodec decodes a standard base64 secret and returns a codec minting
// tokens valid for ttl.
func NewJWTCodec(base64Secret string, ttl time.Duration) (*JWTCodec, error) {
	if strings.TrimSpace(base64Secret) == "" {
		return nil, ErrMissingSecret
	}
	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(base64Secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	if len(secret) < minSecretBytes {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}

	c := &JWTCodec{secret: secret, ttl: ttl, now: time.Now}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// TTL returns the lifetime of minted tokens.
func (c *JWTCodec) TTL() time.Duration {
	return c.ttl
}

// Sign mints a token for subject. Only ROLE_ authorities are embedded.
func (c *JWTCodec) Sign(subject string, claims SessionClaims) (string, error) {
	token, _, err := c.Issue(subject, claims)
	return token, err
}

// Issue is Sign that also reports the expiry written into the token. Each
// token carries a random jti so two logins within the same second still yield
// distinct values.
func (c *JWTCodec) Issue(subject string, claims SessionClaims) (string, time.Time, error) {
	now := c.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)

	roles := make([]string, 0, len(claims.Authorities))
	for _, a := range claims.Authorities {
		if strings.HasPrefix(a, "ROLE_") {
			roles = append(roles, a)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: claims.UserID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates signature, algorithm and expiry and returns the claims.
func (c *JWTCodec) Parse(tokenString string) (*Claims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrMalformedToken
	}

	var claims Claims
	token, err := c.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token claims")
	}
	return &claims, nil
}

// ExtractSubject returns the subject of a valid, unexpired token.
func (c *JWTCodec) ExtractSubject(tokenString string) (string, bool) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// Verify reports whether the token is valid and was issued to expectedSubject.
func (c *JWTCodec) Verify(tokenString, expectedSubject string) bool {
	subject, ok := c.ExtractSubject(tokenString)
	return ok && subject == expectedSubject
}

// HasJWTShape reports whether s has exactly three dot-separated segments.
func HasJWTShape(s string) bool {
	return strings.Count(s, ".") == 2
}
