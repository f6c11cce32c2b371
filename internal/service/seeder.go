package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
)

// RoleSeeder makes sure every known role and its permissions exist. It is
// idempotent and safe to run on every start.
type RoleSeeder struct {
	roles  repository.RoleRepository
	logger *slog.Logger
}

// NewRoleSeeder creates a seeder.
func NewRoleSeeder(roles repository.RoleRepository, logger *slog.Logger) *RoleSeeder {
	return &RoleSeeder{roles: roles, logger: logger}
}

// Seed upserts each role in domain.AllRoles and then checks that all of
// them can be read back.
func (s *RoleSeeder) Seed(ctx context.Context) error {
	for _, name := range domain.AllRoles() {
		if err := s.roles.Upsert(ctx, name, name.Permissions()); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}

	for _, name := range domain.AllRoles() {
		if _, err := s.roles.GetByName(ctx, name); err != nil {
			return fmt.Errorf("verify role %s: %w", name, err)
		}
	}

	s.logger.InfoContext(ctx, "roles seeded", slog.Int("count", len(domain.AllRoles())))
	return nil
}
