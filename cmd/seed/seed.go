package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
	"github.com/utafrali/petcare-user/pkg/database"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
	"github.com/utafrali/petcare-user/pkg/logger"
)

type accountDef struct {
	email     string
	firstName string
	lastName  string
	role      domain.RoleName
	prefs     domain.AdoptionPreferences
}

var demoAccounts = []accountDef{
	{email: "admin@petcare.local", firstName: "Ada", lastName: "Admin", role: domain.RoleAdmin},
	{email: "owner@petcare.local", firstName: "Olive", lastName: "Owner", role: domain.RolePetOwner},
	{
		email: "adopter@petcare.local", firstName: "Adam", lastName: "Adopter", role: domain.RolePetOwner,
		prefs: domain.AdoptionPreferences{
			Lifestyle:   "active, runs every morning",
			Experience:  "grew up with dogs",
			LivingSpace: "house with a garden",
			Preferences: "medium sized, friendly with kids",
		},
	},
	{email: "vet@petcare.local", firstName: "Victor", lastName: "Vet", role: domain.RoleVeterinarian},
	{email: "sitter@petcare.local", firstName: "Sam", lastName: "Sitter", role: domain.RoleServiceProvider},
}

// demoPets are listed by the account that owns them.
var demoPets = map[string][]domain.Pet{
	"owner@petcare.local": {
		{Name: "Biscuit", Species: "dog", Age: 3, Color: "golden", Sex: "male", Description: "Loves fetch and long walks", Location: "Istanbul"},
		{Name: "Miso", Species: "cat", Age: 2, Color: "black", Sex: "female", Description: "Quiet, prefers a calm home", Location: "Istanbul"},
		{Name: "Pepper", Species: "rabbit", Age: 1, Color: "grey", Sex: "female", Description: "Curious and easy to handle", Location: "Ankara"},
	},
	"vet@petcare.local": {
		{Name: "Rex", Species: "dog", Age: 6, Color: "brown", Sex: "male", Description: "Calm senior, good with children", Location: "Izmir"},
	},
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

type seeder struct {
	users  repository.UserRepository
	hasher passwordHasher
	logger *slog.Logger
}

// seedAccounts creates each missing account already activated and returns
// the ids of all demo accounts by email.
func (s *seeder) seedAccounts(ctx context.Context, defs []accountDef, password string) (map[string]int64, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	ids := make(map[string]int64, len(defs))
	for _, d := range defs {
		existing, err := s.users.GetByEmail(ctx, d.email)
		if err == nil {
			ids[d.email] = existing.ID
			s.logger.Info("account exists, skipping", slog.String("email", logger.MaskEmail(d.email)))
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("look up %s: %w", d.email, err)
		}

		u := &domain.User{
			Email:               d.email,
			PasswordHash:        hash,
			FirstName:           d.firstName,
			LastName:            d.lastName,
			Roles:               []domain.RoleName{d.role},
			AdoptionPreferences: d.prefs,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create %s: %w", d.email, err)
		}
		if err := s.users.Enable(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("enable %s: %w", d.email, err)
		}
		ids[d.email] = u.ID
		s.logger.Info("account created",
			slog.String("email", logger.MaskEmail(d.email)),
			slog.String("role", string(d.role)),
		)
	}
	return ids, nil
}

const insertPetSQL = `INSERT INTO pets (name, species, age, color, sex, description, location, for_adoption, owner_id)
SELECT $1, $2, $3, $4, $5, $6, $7, TRUE, $8
WHERE NOT EXISTS (SELECT 1 FROM pets WHERE name = $1 AND owner_id = $8)`

// seedPets inserts the adoptable pets of each owner that is not already
// listed, and returns how many rows were added.
func seedPets(ctx context.Context, db database.DBTX, owners map[string]int64, pets map[string][]domain.Pet) (int64, error) {
	var inserted int64
	for email, list := range pets {
		ownerID, ok := owners[email]
		if !ok {
			return inserted, fmt.Errorf("no account for pet owner %s", email)
		}
		for _, p := range list {
			tag, err := db.Exec(ctx, insertPetSQL,
				p.Name, p.Species, p.Age, p.Color, p.Sex, p.Description, p.Location, ownerID)
			if err != nil {
				return inserted, fmt.Errorf("insert pet %s: %w", p.Name, err)
			}
			inserted += tag.RowsAffected()
		}
	}
	return inserted, nil
}
