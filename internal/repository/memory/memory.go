// Package memory provides in-memory repositories that mirror the Postgres
// implementations, including the single-winner semantics of token Consume.
// They back service and handler tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// Store holds every table behind a single lock.
type Store struct {
	mu sync.RWMutex
	// txMu serializes WithinTx calls, standing in for row locks.
	txMu sync.Mutex

	nextID int64
	users  map[int64]*domain.User
	roles  map[domain.RoleName]*domain.Role
	tokens map[int64]*domain.Token
	pets   []domain.Pet
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:  make(map[int64]*domain.User),
		roles:  make(map[domain.RoleName]*domain.Role),
		tokens: make(map[int64]*domain.Token),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Roles returns the role repository view of the store.
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }

// Tokens returns the token repository view of the store.
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// Pets returns the pet repository view of the store.
func (s *Store) Pets() *PetRepository { return &PetRepository{s: s} }

var _ repository.Transactor = (*Store)(nil)

// WithinTx runs fn with exclusive use of the store's transactions. When fn
// fails, users and tokens are restored to their state before the call.
// Writes made outside WithinTx while fn runs are lost on restore.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	users, tokens := s.snapshot()
	if err := fn(ctx, repository.Tx{Users: s.Users(), Tokens: s.Tokens()}); err != nil {
		s.mu.Lock()
		s.users, s.tokens = users, tokens
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) snapshot() (map[int64]*domain.User, map[int64]*domain.Token) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[int64]*domain.User, len(s.users))
	for id, u := range s.users {
		users[id] = cloneUser(u)
	}
	tokens := make(map[int64]*domain.Token, len(s.tokens))
	for id, t := range s.tokens {
		cp := *t
		tokens[id] = &cp
	}
	return users, tokens
}

// AddPet inserts a pet row.
func (s *Store) AddPet(p domain.Pet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.pets = append(s.pets, p)
}

// TokensFor returns copies of every token of the type owned by the user,
// in creation order.
func (s *Store) TokensFor(userID int64, tokenType domain.TokenType) []domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Token
	for _, t := range s.tokens {
		if t.UserID == userID && t.Type == tokenType {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExpireToken moves a token's expiry to at.
func (s *Store) ExpireToken(value string, tokenType domain.TokenType, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findToken(value, tokenType); t != nil {
		t.ExpiresAt = at
	}
}

func (s *Store) findToken(value string, tokenType domain.TokenType) *domain.Token {
	for _, t := range s.tokens {
		if t.Value == value && t.Type == tokenType {
			return t
		}
	}
	return nil
}

func (s *Store) withEmail(t *domain.Token) *domain.Token {
	cp := *t
	if u, ok := s.users[t.UserID]; ok {
		cp.UserEmail = u.Email
	}
	return &cp
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	return &cp
}

// UserRepository implements repository.UserRepository.
type UserRepository struct{ s *Store }

var _ repository.UserRepository = (*UserRepository)(nil)

// Create inserts the user after checking email uniqueness and role existence.
func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailAlreadyRegistered
		}
	}
	for _, name := range u.Roles {
		if _, ok := r.s.roles[name]; !ok {
			return domain.ErrRoleNotFound
		}
	}

	now := time.Now().UTC()
	u.ID = r.s.id()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

// GetByID returns a copy of the user.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return cloneUser(u), nil
}

// GetByEmail returns a copy of the user with the email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

// ExistsByEmail reports whether the email is taken.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

// Delete removes the user and cascades to its tokens.
func (r *UserRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	delete(r.s.users, id)
	for tid, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, tid)
		}
	}
	return nil
}

// LockByID checks that the user exists. WithinTx provides the exclusion.
func (r *UserRepository) LockByID(_ context.Context, id int64) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if _, ok := r.s.users[id]; !ok {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// Enable activates the account.
func (r *UserRepository) Enable(_ context.Context, id int64) error {
	return r.update(id, func(u *domain.User) { u.Enabled = true })
}

// UpdatePassword stores the hash and enables the account.
func (r *UserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.Enabled = true
	})
}

// UpdateProfile stores the editable profile fields.
func (r *UserRepository) UpdateProfile(_ context.Context, in *domain.User) error {
	return r.update(in.ID, func(u *domain.User) {
		u.FirstName = in.FirstName
		u.LastName = in.LastName
		u.ProfileImageURL = in.ProfileImageURL
		u.Bio = in.Bio
		u.AdoptionPreferences = in.AdoptionPreferences
		in.UpdatedAt = u.UpdatedAt
	})
}

// List returns users ordered by id.
func (r *UserRepository) List(_ context.Context, offset, limit int) ([]domain.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]int64, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	total := len(ids)
	if offset >= total {
		return []domain.User{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]domain.User, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, *cloneUser(r.s.users[id]))
	}
	return out, total, nil
}

func (r *UserRepository) update(id int64, fn func(u *domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	u.UpdatedAt = time.Now().UTC()
	fn(u)
	return nil
}

// RoleRepository implements repository.RoleRepository.
type RoleRepository struct{ s *Store }

var _ repository.RoleRepository = (*RoleRepository)(nil)

// GetByName returns the role or domain.ErrRoleNotFound.
func (r *RoleRepository) GetByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[name]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	cp := *role
	cp.Permissions = slices.Clone(role.Permissions)
	return &cp, nil
}

// Upsert creates the role when missing and adds any missing permissions.
func (r *RoleRepository) Upsert(_ context.Context, name domain.RoleName, permissions []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[name]
	if !ok {
		role = &domain.Role{ID: r.s.id(), Name: name, Permissions: []string{}}
		r.s.roles[name] = role
	}
	for _, p := range permissions {
		if !slices.Contains(role.Permissions, p) {
			role.Permissions = append(role.Permissions, p)
		}
	}
	slices.Sort(role.Permissions)
	return nil
}

// List returns every role ordered by name.
func (r *RoleRepository) List(_ context.Context) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		cp := *role
		cp.Permissions = slices.Clone(role.Permissions)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TokenRepository implements repository.TokenRepository.
type TokenRepository struct{ s *Store }

var _ repository.TokenRepository = (*TokenRepository)(nil)

// Create stores the token, enforcing (type, value) uniqueness.
func (r *TokenRepository) Create(_ context.Context, t *domain.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findToken(t.Value, t.Type) != nil {
		return apperrors.AlreadyExists("token", "type", string(t.Type))
	}
	if _, ok := r.s.users[t.UserID]; !ok {
		return apperrors.NotFound("user", strconv.FormatInt(t.UserID, 10))
	}
	t.ID = r.s.id()
	cp := *t
	r.s.tokens[t.ID] = &cp
	return nil
}

// GetByValue returns the token with its owner's email.
func (r *TokenRepository) GetByValue(_ context.Context, value string, tokenType domain.TokenType) (*domain.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t := r.s.findToken(value, tokenType)
	if t == nil {
		return nil, apperrors.ErrNotFound
	}
	return r.s.withEmail(t), nil
}

// Consume revokes the token if it is usable at now.
func (r *TokenRepository) Consume(_ context.Context, value string, tokenType domain.TokenType, now time.Time) (*domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.findToken(value, tokenType)
	if t == nil {
		return nil, repository.ErrNotConsumed
	}
	if !t.Usable(now) {
		return r.s.withEmail(t), repository.ErrNotConsumed
	}
	t.Revoked = true
	validated := now
	t.ValidatedAt = &validated
	return r.s.withEmail(t), nil
}

// RevokeAllForUser revokes the user's outstanding tokens of the type.
func (r *TokenRepository) RevokeAllForUser(_ context.Context, userID int64, tokenType domain.TokenType) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.Type == tokenType && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

// DeleteExpired drops tokens that expired before the cutoff.
func (r *TokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// PetRepository implements repository.PetRepository.
type PetRepository struct{ s *Store }

var _ repository.PetRepository = (*PetRepository)(nil)

// ListForAdoption returns pets not owned by excludeOwnerID, ordered by id.
func (r *PetRepository) ListForAdoption(_ context.Context, excludeOwnerID int64, limit int) ([]domain.Pet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Pet, 0, len(r.s.pets))
	for _, p := range r.s.pets {
		if p.OwnerID != 0 && p.OwnerID == excludeOwnerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
