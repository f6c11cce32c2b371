package repository

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/petcare-user/internal/domain"
)

// ErrNotConsumed is returned by TokenRepository.Consume when the conditional
// update matched no usable token.
var ErrNotConsumed = errors.New("token not consumed")

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts the user together with its role links and sets u.ID.
	Create(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user with its roles.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user with its roles by normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail reports whether an account uses the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// LockByID locks the user row until the surrounding transaction ends.
	LockByID(ctx context.Context, id int64) error

	// Enable marks the account as activated.
	Enable(ctx context.Context, id int64) error

	// Delete removes the user together with its role links and tokens.
	Delete(ctx context.Context, id int64) error

	// UpdatePassword stores a new hash and enables the account.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// UpdateProfile stores the user-editable profile fields.
	UpdateProfile(ctx context.Context, u *domain.User) error

	// List returns a page of users and the total count.
	List(ctx context.Context, offset, limit int) ([]domain.User, int, error)
}

// RoleRepository defines the interface for role persistence operations.
type RoleRepository interface {
	// GetByName retrieves a seeded role with its permissions.
	GetByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)

	// Upsert inserts the role and its permissions if missing. Existing rows
	// are left untouched.
	Upsert(ctx context.Context, name domain.RoleName, permissions []string) error

	// List returns every stored role with its permissions.
	List(ctx context.Context) ([]domain.Role, error)
}

// TokenRepository is the store for activation codes, login sessions and
// reset tokens. Single-use transitions are conditional updates so that
// concurrent attempts on the same value have exactly one winner.
type TokenRepository interface {
	// Create persists a new token and sets t.ID.
	Create(ctx context.Context, t *domain.Token) error

	// GetByValue returns the token of the given type with the owner's email.
	GetByValue(ctx context.Context, value string, tokenType domain.TokenType) (*domain.Token, error)

	// Consume revokes a usable token and stamps validated_at. When the token
	// cannot be consumed it returns the current row (nil if absent) together
	// with ErrNotConsumed so the caller can classify the failure.
	Consume(ctx context.Context, value string, tokenType domain.TokenType, now time.Time) (*domain.Token, error)

	// RevokeAllForUser revokes every outstanding token of the type for the
	// user and returns the number revoked.
	RevokeAllForUser(ctx context.Context, userID int64, tokenType domain.TokenType) (int64, error)

	// DeleteExpired hard-deletes every token that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PetRepository provides the read-only pet queries used for matching.
type PetRepository interface {
	// ListForAdoption returns pets listed for adoption not owned by the user.
	ListForAdoption(ctx context.Context, excludeOwnerID int64, limit int) ([]domain.Pet, error)
}

// Tx holds the repositories bound to one transaction.
type Tx struct {
	Users  UserRepository
	Tokens TokenRepository
}

// Transactor runs fn inside a single transaction. The writes made through
// tx are committed when fn returns nil and rolled back otherwise; fn's error
// is returned unchanged.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
