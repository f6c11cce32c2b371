package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	activationCodeMin   = 100000
	activationCodeRange = 900000
)

// NewActivationCode returns a six digit code drawn uniformly from
// 100000-999999 using the system CSPRNG.
func NewActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(activationCodeRange))
	if err != nil {
		return "", fmt.Errorf("generate activation code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+activationCodeMin), nil
}

// NewResetToken returns an opaque random password-reset token.
func NewResetToken() string {
	return uuid.NewString()
}
