// Command seed populates a development database with demo accounts and
// adoptable pets so the login and matching flows can be tried end to end.
// It reads the same environment as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/config"
	"github.com/utafrali/petcare-user/internal/repository/postgres"
	"github.com/utafrali/petcare-user/internal/service"
	"github.com/utafrali/petcare-user/migrations"
	"github.com/utafrali/petcare-user/pkg/database"
	"github.com/utafrali/petcare-user/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	password := flag.String("password", "petcare123", "password for every demo account")
	withPets := flag.Bool("pets", true, "insert adoptable demo pets")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.IsDevelopment() {
		return fmt.Errorf("refusing to seed a %q environment", cfg.Environment)
	}
	log := logger.New("user-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := service.NewRoleSeeder(postgres.NewRoleRepository(pool), log).Seed(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	s := &seeder{
		users:  postgres.NewUserRepository(pool),
		hasher: auth.NewPasswordHasher(cfg.BcryptCost),
		logger: log,
	}
	owners, err := s.seedAccounts(ctx, demoAccounts, *password)
	if err != nil {
		return err
	}

	if *withPets {
		n, err := seedPets(ctx, pool, owners, demoPets)
		if err != nil {
			return err
		}
		log.Info("pets seeded", slog.Int64("inserted", n))
	}
	return nil
}
