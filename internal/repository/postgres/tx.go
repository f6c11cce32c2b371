package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/petcare-user/internal/repository"
	"github.com/utafrali/petcare-user/pkg/database"
)

// Transactor runs units of work on one pgx transaction.
type Transactor struct {
	db database.DBTX
}

// NewTransactor creates a new Transactor.
func NewTransactor(db database.DBTX) *Transactor {
	return &Transactor{db: db}
}

// WithinTx begins a transaction, hands fn repositories bound to it and
// commits when fn succeeds.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, repository.Tx{
		Users:  NewUserRepository(tx),
		Tokens: NewTokenRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
