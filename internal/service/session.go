package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/repository"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// Session is an accepted login session.
type Session struct {
	User        *domain.User
	Authorities []string
}

// SessionValidator decides whether a bearer token still represents a live
// session. The token store is authoritative; the JWT only proves who the
// session belongs to.
type SessionValidator struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
	codec  *auth.JWTCodec
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionValidator creates a validator.
func NewSessionValidator(tokens repository.TokenRepository, users repository.UserRepository, codec *auth.JWTCodec, logger *slog.Logger) *SessionValidator {
	return &SessionValidator{
		tokens: tokens,
		users:  users,
		codec:  codec,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks a raw token (without the Bearer prefix). Rejections are
// domain.ErrSessionInvalid, ErrSessionTerminated or ErrSessionExpired;
// disabled and locked accounts are reported as ErrSessionInvalid.
func (v *SessionValidator) Validate(ctx context.Context, token string) (*Session, error) {
	if !auth.HasJWTShape(token) {
		return nil, domain.ErrSessionInvalid
	}

	tok, err := v.tokens.GetByValue(ctx, token, domain.TokenLogin)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	switch domain.StateOf(tok, v.now()) {
	case domain.TokenStateMissing:
		return nil, domain.ErrSessionInvalid
	case domain.TokenStateRevoked:
		return nil, domain.ErrSessionTerminated
	case domain.TokenStateExpired:
		return nil, domain.ErrSessionExpired
	}

	subject, ok := v.codec.ExtractSubject(token)
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	if subject != tok.UserEmail {
		v.logger.WarnContext(ctx, "session subject does not match token owner",
			slog.String("user_id", strconv.FormatInt(tok.UserID, 10)),
		)
		return nil, domain.ErrSessionInvalid
	}

	user, err := v.users.GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if !user.Enabled || user.Locked {
		return nil, domain.ErrSessionInvalid
	}

	return &Session{User: user, Authorities: domain.AuthoritiesFor(user.Roles)}, nil
}
