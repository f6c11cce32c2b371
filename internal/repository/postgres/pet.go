package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/database"
)

// PetRepository implements repository.PetRepository using PostgreSQL. The
// pets table is owned by the pet service; this repository only reads it.
type PetRepository struct {
	db database.DBTX
}

// NewPetRepository creates a new PostgreSQL-backed pet repository.
func NewPetRepository(db database.DBTX) *PetRepository {
	return &PetRepository{db: db}
}

// ListForAdoption returns up to limit adoptable pets, skipping those owned by
// excludeOwnerID.
func (r *PetRepository) ListForAdoption(ctx context.Context, excludeOwnerID int64, limit int) (pets []domain.Pet, err error) {
	query := `
		SELECT id, name, COALESCE(species, ''), COALESCE(age, 0), COALESCE(color, ''), COALESCE(sex, ''),
		       COALESCE(description, ''), COALESCE(location, ''), COALESCE(owner_id, 0)
		FROM pets
		WHERE for_adoption = TRUE AND (owner_id IS NULL OR owner_id <> $1)
		ORDER BY id
		LIMIT $2`
	ctx, end := database.TraceQuery(ctx, "ListPetsForAdoption", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, excludeOwnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	pets = []domain.Pet{}
	for rows.Next() {
		var p domain.Pet
		if err := rows.Scan(&p.ID, &p.Name, &p.Species, &p.Age, &p.Color, &p.Sex,
			&p.Description, &p.Location, &p.OwnerID); err != nil {
			return nil, fmt.Errorf("scan pet row: %w", err)
		}
		pets = append(pets, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pet rows: %w", err)
	}
	return pets, nil
}
