package domain

import "time"

// TokenType discriminates the credential artifacts kept in the token store.
type TokenType string

const (
	TokenActivation    TokenType = "ACTIVATION"
	TokenLogin         TokenType = "LOGIN"
	TokenPasswordReset TokenType = "PASSWORD_RESET"
)

// Default lifetimes per token type.
const (
	ActivationTTL    = 15 * time.Minute
	LoginTTL         = 24 * time.Hour
	PasswordResetTTL = time.Hour
)

// Token is an issued activation code, login session or reset token.
type Token struct {
	ID          int64      `json:"id"`
	Value       string     `json:"-"`
	Type        TokenType  `json:"type"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	Revoked     bool       `json:"revoked"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
	UserID      int64      `json:"userId"`

	// UserEmail is filled in by lookups that join the owning user.
	UserEmail string `json:"-"`
}

// Usable reports whether the token can still be used at now.
func (t *Token) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenState is the outcome of inspecting a token that could not be used.
type TokenState int

const (
	TokenStateUsable TokenState = iota
	TokenStateMissing
	TokenStateRevoked
	TokenStateExpired
)

// StateOf classifies t at now. Revocation is checked before expiry so a used
// token is reported as used even once it has also expired.
func StateOf(t *Token, now time.Time) TokenState {
	switch {
	case t == nil:
		return TokenStateMissing
	case t.Revoked:
		return TokenStateRevoked
	case t.Expired(now):
		return TokenStateExpired
	default:
		return TokenStateUsable
	}
}
