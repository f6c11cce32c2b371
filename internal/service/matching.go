package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/matching"
	"github.com/utafrali/petcare-user/internal/repository"
)

// maxMatchCandidates bounds the pets sent in one matching request.
const maxMatchCandidates = 200

// Matcher scores pets against an adopter. *matching.Client satisfies it.
type Matcher interface {
	Match(ctx context.Context, req matching.Request) (*matching.Response, error)
}

// MatchingService recommends adoptable pets for a user.
type MatchingService struct {
	users       repository.UserRepository
	pets        repository.PetRepository
	matcher     Matcher
	defaultTopN int
	logger      *slog.Logger
}

// NewMatchingService creates a new matching service. A non-positive
// defaultTopN falls back to matching.DefaultTopN.
func NewMatchingService(users repository.UserRepository, pets repository.PetRepository, matcher Matcher, defaultTopN int, logger *slog.Logger) *MatchingService {
	if defaultTopN <= 0 {
		defaultTopN = matching.DefaultTopN
	}
	return &MatchingService{users: users, pets: pets, matcher: matcher, defaultTopN: defaultTopN, logger: logger}
}

// Match returns the best topN adoptable pets for the user, excluding pets the
// user owns. A non-positive topN uses the configured default.
func (s *MatchingService) Match(ctx context.Context, userID int64, topN int) ([]matching.Match, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.AdoptionPreferences.IsEmpty() {
		return nil, domain.ErrNoAdoptionPreferences
	}

	pets, err := s.pets.ListForAdoption(ctx, userID, maxMatchCandidates)
	if err != nil {
		return nil, fmt.Errorf("list adoptable pets: %w", err)
	}
	if len(pets) == 0 {
		return []matching.Match{}, nil
	}

	if topN <= 0 {
		topN = s.defaultTopN
	}
	resp, err := s.matcher.Match(ctx, matching.NewRequest(userID, user.AdoptionPreferences, pets, topN))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "matching service call failed",
			slog.String("user_id", strconv.FormatInt(userID, 10)),
			slog.Int("candidates", len(pets)),
			slog.String("error", err.Error()),
		)
		return nil, domain.ErrMatchingUnavailable
	}
	return resp.Matches, nil
}
