package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/utafrali/petcare-user/internal/domain"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// UserFinder looks users up by normalized email.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CredentialVerifier checks an email and password against the stored account.
type CredentialVerifier struct {
	users     UserFinder
	hasher    *PasswordHasher
	dummyHash string
}

// NewCredentialVerifier creates a verifier. A throwaway hash is computed once
// so lookups for unknown emails cost the same bcrypt work as real ones.
func NewCredentialVerifier(users UserFinder, hasher *PasswordHasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash("petcare-timing-equalizer")
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Verify returns the user when the password matches and the account is
// enabled and unlocked. Password and existence failures are both reported
// as domain.ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := v.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			v.hasher.Compare(v.dummyHash, password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !v.hasher.Compare(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, domain.ErrAccountNotActivated
	}
	if user.Locked {
		return nil, domain.ErrAccountLocked
	}
	return user, nil
}
