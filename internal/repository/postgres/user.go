package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/database"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// userSelect loads a user row with its role names aggregated into one array.
const userSelect = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.enabled, u.locked,
	       u.profile_image_url, u.bio, u.adoption_preferences, u.created_at, u.updated_at,
	       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and links its roles in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", "INSERT INTO users")
	defer func() { end(err) }()

	prefs, err := json.Marshal(u.AdoptionPreferences)
	if err != nil {
		return fmt.Errorf("marshal adoption preferences: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, enabled, locked, profile_image_url, bio, adoption_preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Enabled,
		u.Locked,
		u.ProfileImageURL,
		u.Bio,
		prefs,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyRegistered
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if len(u.Roles) > 0 {
		names := roleNameStrings(u.Roles)
		ct, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = ANY($2)`,
			u.ID, names)
		if err != nil {
			return fmt.Errorf("insert user roles: %w", err)
		}
		if ct.RowsAffected() != int64(len(names)) {
			return domain.ErrRoleNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByID", userSelect+` WHERE u.id = $1 GROUP BY u.id`, strconv.FormatInt(id, 10), id)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", userSelect+` WHERE u.email = $1 GROUP BY u.id`, email, email)
}

// ExistsByEmail reports whether the email is taken.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (exists bool, err error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	ctx, end := database.TraceQuery(ctx, "UserExistsByEmail", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// LockByID takes a row lock on the user. Outside a transaction the lock is
// released as soon as the statement completes.
func (r *UserRepository) LockByID(ctx context.Context, id int64) (err error) {
	query := `SELECT id FROM users WHERE id = $1 FOR UPDATE`
	ctx, end := database.TraceQuery(ctx, "LockUser", query)
	defer func() { end(err) }()

	var locked int64
	if err = r.db.QueryRow(ctx, query, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("user", strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// Enable activates the account.
func (r *UserRepository) Enable(ctx context.Context, id int64) error {
	return r.execOne(ctx, "EnableUser",
		`UPDATE users SET enabled = TRUE, updated_at = NOW() WHERE id = $1`, id, id)
}

// Delete removes the user. Role links and tokens go with it.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "DeleteUser", `DELETE FROM users WHERE id = $1`, id, id)
}

// UpdatePassword replaces the password hash. A reset doubles as activation,
// so the account is enabled as well.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.execOne(ctx, "UpdateUserPassword",
		`UPDATE users SET password_hash = $1, enabled = TRUE, updated_at = NOW() WHERE id = $2`, id, passwordHash, id)
}

// UpdateProfile stores names, bio, image URL and adoption preferences.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	prefs, err := json.Marshal(u.AdoptionPreferences)
	if err != nil {
		return fmt.Errorf("marshal adoption preferences: %w", err)
	}
	u.UpdatedAt = time.Now().UTC()

	return r.execOne(ctx, "UpdateUserProfile", `
		UPDATE users
		SET first_name = $1, last_name = $2, profile_image_url = $3, bio = $4,
		    adoption_preferences = $5, updated_at = $6
		WHERE id = $7`,
		u.ID,
		u.FirstName, u.LastName, u.ProfileImageURL, u.Bio, prefs, u.UpdatedAt, u.ID,
	)
}

// List returns a page of users ordered by ID and the total count.
func (r *UserRepository) List(ctx context.Context, offset, limit int) (users []domain.User, total int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListUsers", "SELECT FROM users")
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.Query(ctx, userSelect+` GROUP BY u.id ORDER BY u.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users = make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) scanUser(ctx context.Context, op, query, key string, arg any) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	u, err = scanUserRow(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// execOne runs an update that must touch exactly one user row.
func (r *UserRepository) execOne(ctx context.Context, op, query string, id int64, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		prefs []byte
		roles []string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Enabled,
		&u.Locked,
		&u.ProfileImageURL,
		&u.Bio,
		&prefs,
		&u.CreatedAt,
		&u.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.AdoptionPreferences); err != nil {
			return nil, fmt.Errorf("decode adoption preferences: %w", err)
		}
	}
	u.Roles = make([]domain.RoleName, 0, len(roles))
	for _, name := range roles {
		u.Roles = append(u.Roles, domain.RoleName(name))
	}
	return &u, nil
}

func roleNameStrings(roles []domain.RoleName) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
