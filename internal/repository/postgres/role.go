package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/database"
)

const roleSelect = `
	SELECT r.id, r.name,
	       COALESCE(array_agg(p.permission ORDER BY p.permission) FILTER (WHERE p.permission IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions p ON p.role_id = r.id`

// RoleRepository implements repository.RoleRepository using PostgreSQL.
type RoleRepository struct {
	db database.DBTX
}

// NewRoleRepository creates a new PostgreSQL-backed role repository.
func NewRoleRepository(db database.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByName returns the role or domain.ErrRoleNotFound.
func (r *RoleRepository) GetByName(ctx context.Context, name domain.RoleName) (role *domain.Role, err error) {
	query := roleSelect + ` WHERE r.name = $1 GROUP BY r.id`
	ctx, end := database.TraceQuery(ctx, "GetRoleByName", query)
	defer func() { end(err) }()

	role, err = scanRole(r.db.QueryRow(ctx, query, string(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return role, nil
}

// Upsert inserts the role and any missing permission rows. Running it again
// with the same input changes nothing.
func (r *RoleRepository) Upsert(ctx context.Context, name domain.RoleName, permissions []string) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertRole", "INSERT INTO roles")
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx,
		`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, string(name)); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	if len(permissions) > 0 {
		if _, err = tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission)
			SELECT r.id, p FROM roles r, unnest($2::text[]) AS p
			WHERE r.name = $1
			ON CONFLICT (role_id, permission) DO NOTHING`,
			string(name), permissions); err != nil {
			return fmt.Errorf("insert role permissions: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) (roles []domain.Role, err error) {
	query := roleSelect + ` GROUP BY r.id ORDER BY r.name`
	ctx, end := database.TraceQuery(ctx, "ListRoles", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles = []domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	return roles, nil
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role domain.Role
		name string
	)
	if err := row.Scan(&role.ID, &name, &role.Permissions); err != nil {
		return nil, err
	}
	role.Name = domain.RoleName(name)
	return &role, nil
}
