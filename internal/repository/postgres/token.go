package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
	"github.com/utafrali/petcare-user/pkg/database"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

const tokenColumns = `t.id, t.value, t.type, t.created_at, t.expires_at, t.revoked, t.validated_at, t.user_id, u.email`

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db database.DBTX
}

// NewTokenRepository creates a new PostgreSQL-backed token repository.
func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a token and sets its ID.
func (r *TokenRepository) Create(ctx context.Context, t *domain.Token) (err error) {
	query := `
		INSERT INTO tokens (value, type, user_id, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	ctx, end := database.TraceQuery(ctx, "CreateToken", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		t.Value,
		string(t.Type),
		t.UserID,
		t.CreatedAt,
		t.ExpiresAt,
		t.Revoked,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("token", "type", string(t.Type))
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByValue looks up a token by value and type.
func (r *TokenRepository) GetByValue(ctx context.Context, value string, tokenType domain.TokenType) (t *domain.Token, err error) {
	query := `SELECT ` + tokenColumns + `
		FROM tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.value = $1 AND t.type = $2`
	ctx, end := database.TraceQuery(ctx, "GetTokenByValue", query)
	defer func() { end(err) }()

	t, err = scanToken(r.db.QueryRow(ctx, query, value, string(tokenType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}

// Consume revokes the token only if it is still unrevoked and unexpired at
// now. The check and the write are one statement, so of several concurrent
// callers exactly one gets the row back.
func (r *TokenRepository) Consume(ctx context.Context, value string, tokenType domain.TokenType, now time.Time) (t *domain.Token, err error) {
	query := `
		WITH consumed AS (
			UPDATE tokens
			SET revoked = TRUE, validated_at = $3
			WHERE value = $1 AND type = $2 AND revoked = FALSE AND expires_at > $3
			RETURNING id, value, type, created_at, expires_at, revoked, validated_at, user_id
		)
		SELECT ` + tokenColumns + `
		FROM consumed t
		JOIN users u ON u.id = t.user_id`
	ctx, end := database.TraceQuery(ctx, "ConsumeToken", query)
	defer func() { end(err) }()

	t, err = scanToken(r.db.QueryRow(ctx, query, value, string(tokenType), now))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume token: %w", err)
	}

	current, err := r.GetByValue(ctx, value, tokenType)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, repository.ErrNotConsumed
		}
		return nil, err
	}
	return current, repository.ErrNotConsumed
}

// RevokeAllForUser revokes the user's outstanding tokens of one type.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID int64, tokenType domain.TokenType) (n int64, err error) {
	query := `UPDATE tokens SET revoked = TRUE WHERE user_id = $1 AND type = $2 AND revoked = FALSE`
	ctx, end := database.TraceQuery(ctx, "RevokeUserTokens", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, string(tokenType))
	if err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

// DeleteExpired removes every token whose expiry is before the cutoff,
// revoked or not.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (n int64, err error) {
	query := `DELETE FROM tokens WHERE expires_at < $1`
	ctx, end := database.TraceQuery(ctx, "DeleteExpiredTokens", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t         domain.Token
		tokenType string
	)
	err := row.Scan(
		&t.ID,
		&t.Value,
		&tokenType,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.Revoked,
		&t.ValidatedAt,
		&t.UserID,
		&t.UserEmail,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TokenType(tokenType)
	return &t, nil
}
