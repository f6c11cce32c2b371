package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
	"github.com/utafrali/petcare-user/pkg/pagination"
)

// ProfileService manages the user-editable profile and the admin listings.
type ProfileService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	events EventPublisher
	logger *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(users repository.UserRepository, roles repository.RoleRepository, events EventPublisher, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, roles: roles, events: events, logger: logger}
}

// UpdateProfileInput holds the fields a user may change. Nil fields are
// left as they are.
type UpdateProfileInput struct {
	FirstName           *string
	LastName            *string
	ProfileImageURL     *string
	Bio                 *string
	AdoptionPreferences *domain.AdoptionPreferences
}

// GetProfile returns the user by id.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of input.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if input.FirstName != nil {
		v := strings.TrimSpace(*input.FirstName)
		if v == "" {
			return nil, apperrors.InvalidInput("first name cannot be empty")
		}
		user.FirstName = v
	}
	if input.LastName != nil {
		v := strings.TrimSpace(*input.LastName)
		if v == "" {
			return nil, apperrors.InvalidInput("last name cannot be empty")
		}
		user.LastName = v
	}
	if input.ProfileImageURL != nil {
		user.ProfileImageURL = strings.TrimSpace(*input.ProfileImageURL)
	}
	if input.Bio != nil {
		if utf8.RuneCountInString(*input.Bio) > domain.MaxBioLength {
			return nil, apperrors.InvalidInput(fmt.Sprintf("bio must be at most %d characters", domain.MaxBioLength))
		}
		user.Bio = *input.Bio
	}
	if input.AdoptionPreferences != nil {
		user.AdoptionPreferences = *input.AdoptionPreferences
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := s.events.PublishProfileUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.profile_updated event",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", strconv.FormatInt(user.ID, 10)),
	)
	return user, nil
}

// ListUsers returns a page of accounts and the total count.
func (s *ProfileService) ListUsers(ctx context.Context, page pagination.Params) ([]domain.User, int, error) {
	users, total, err := s.users.List(ctx, page.Offset, page.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// ListRoles returns every seeded role with its permissions.
func (s *ProfileService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
