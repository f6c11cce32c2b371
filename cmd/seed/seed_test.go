package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository/memory"
	"github.com/utafrali/petcare-user/internal/service"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedAccounts_CreatesEnabledAccountsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, service.NewRoleSeeder(store.Roles(), quietLogger()).Seed(ctx))

	hasher := auth.NewPasswordHasher(4)
	s := &seeder{users: store.Users(), hasher: hasher, logger: quietLogger()}

	first, err := s.seedAccounts(ctx, demoAccounts, "petcare123")
	require.NoError(t, err)
	require.Len(t, first, len(demoAccounts))

	admin, err := store.Users().GetByEmail(ctx, "admin@petcare.local")
	require.NoError(t, err)
	assert.True(t, admin.Enabled)
	assert.Equal(t, []domain.RoleName{domain.RoleAdmin}, admin.Roles)
	assert.True(t, hasher.Compare(admin.PasswordHash, "petcare123"))

	adopter, err := store.Users().GetByEmail(ctx, "adopter@petcare.local")
	require.NoError(t, err)
	assert.False(t, adopter.AdoptionPreferences.IsEmpty())

	second, err := s.seedAccounts(ctx, demoAccounts, "petcare123")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, total, err := store.Users().List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, len(demoAccounts), total)
}

func TestSeedAccounts_MissingRoles(t *testing.T) {
	s := &seeder{users: memory.New().Users(), hasher: auth.NewPasswordHasher(4), logger: quietLogger()}

	_, err := s.seedAccounts(context.Background(), demoAccounts[:1], "petcare123")

	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
}

func TestSeedPets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pets := map[string][]domain.Pet{"owner@petcare.local": {
		{Name: "Biscuit", Species: "dog", Age: 3},
		{Name: "Miso", Species: "cat", Age: 2},
	}}

	mock.ExpectExec("INSERT INTO pets").
		WithArgs("Biscuit", "dog", 3, "", "", "", "", int64(9)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO pets").
		WithArgs("Miso", "cat", 2, "", "", "", "", int64(9)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := seedPets(context.Background(), mock, map[string]int64{"owner@petcare.local": 9}, pets)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedPets_Errors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pets := map[string][]domain.Pet{"owner@petcare.local": {{Name: "Biscuit"}}}

	_, err = seedPets(context.Background(), mock, map[string]int64{}, pets)
	assert.ErrorContains(t, err, "no account for pet owner")

	mock.ExpectExec("INSERT INTO pets").
		WithArgs("Biscuit", "", 0, "", "", "", "", int64(1)).
		WillReturnError(&pgconn.PgError{Code: "42P01"})
	_, err = seedPets(context.Background(), mock, map[string]int64{"owner@petcare.local": 1}, pets)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "42P01", pgErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
