package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/mailer"
	"github.com/utafrali/petcare-user/internal/repository"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
	"github.com/utafrali/petcare-user/pkg/logger"
	"github.com/utafrali/petcare-user/pkg/validator"
)

// minPasswordLength is the minimum password length in characters.
const minPasswordLength = 8

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// activationCodeAttempts bounds retries when a generated code collides with
// an existing one.
const activationCodeAttempts = 3

// Notifier queues the account emails. *mailer.Mailer satisfies it.
type Notifier interface {
	SendActivationEmail(ctx context.Context, to, name, code string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
	SendAdminNotification(ctx context.Context, to string, data mailer.AdminData) error
}

// EventPublisher publishes account events. *event.Producer satisfies it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
	PublishUserActivated(ctx context.Context, u *domain.User) error
	PublishPasswordResetRequested(ctx context.Context, u *domain.User) error
	PublishPasswordChanged(ctx context.Context, u *domain.User) error
	PublishProfileUpdated(ctx context.Context, u *domain.User) error
}

// LoginThrottle limits repeated login failures per email.
// *ratelimit.LoginThrottle satisfies it.
type LoginThrottle interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string)
	Reset(ctx context.Context, email string)
}

// AuthConfig holds the lifetimes and addresses used by AuthService.
type AuthConfig struct {
	ActivationTTL time.Duration
	ResetTTL      time.Duration
	// AdminEmail receives a notification for every registration. Empty
	// disables it.
	AdminEmail string
}

// AuthDeps are the collaborators of AuthService. Tx runs the transitions
// that write more than one row. Throttle may be nil.
type AuthDeps struct {
	Users    repository.UserRepository
	Roles    repository.RoleRepository
	Tokens   repository.TokenRepository
	Tx       repository.Transactor
	Verifier *auth.CredentialVerifier
	Hasher   *auth.PasswordHasher
	Codec    *auth.JWTCodec
	Notifier Notifier
	Events   EventPublisher
	Throttle LoginThrottle
}

// AuthService drives the activation, login session and password reset
// token lifecycles.
type AuthService struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	tokens   repository.TokenRepository
	tx       repository.Transactor
	verifier *auth.CredentialVerifier
	hasher   *auth.PasswordHasher
	codec    *auth.JWTCodec
	notifier Notifier
	events   EventPublisher
	throttle LoginThrottle
	cfg      AuthConfig
	logger   *slog.Logger

	now     func() time.Time
	newCode func() (string, error)
}

// NewAuthService creates a new auth service. Zero TTLs fall back to the
// domain defaults.
func NewAuthService(deps AuthDeps, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = domain.ActivationTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = domain.PasswordResetTTL
	}
	return &AuthService{
		users:    deps.Users,
		roles:    deps.Roles,
		tokens:   deps.Tokens,
		tx:       deps.Tx,
		verifier: deps.Verifier,
		hasher:   deps.Hasher,
		codec:    deps.Codec,
		notifier: deps.Notifier,
		events:   deps.Events,
		throttle: deps.Throttle,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  auth.NewActivationCode,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"-"`
	// Role defaults to PET_OWNER when empty.
	Role string `json:"role"`
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Register creates a disabled account, stores its activation code and queues
// the activation email.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = domain.NormalizeEmail(input.Email)

	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	roleName := domain.DefaultRole
	if strings.TrimSpace(input.Role) != "" {
		parsed, err := domain.ParseRoleName(input.Role)
		if err != nil {
			return nil, domain.ErrRoleNotFound
		}
		roleName = parsed
	}
	if _, err := s.roles.GetByName(ctx, roleName); err != nil {
		return nil, fmt.Errorf("resolve role %s: %w", roleName, err)
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, domain.ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Roles:        []domain.RoleName{roleName},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.issueActivationCode(ctx, user.ID)
	if err != nil {
		s.discardUser(ctx, user)
		return nil, err
	}

	if err := s.notifier.SendActivationEmail(ctx, user.Email, user.FullName(), code); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue activation email",
			slog.String("email", logger.MaskEmail(user.Email)),
			slog.String("error", err.Error()),
		)
		s.discardUser(ctx, user)
		return nil, domain.ErrEmailDeliveryFailed
	}

	if s.cfg.AdminEmail != "" {
		data := mailer.AdminData{Name: user.FullName(), Email: user.Email, Code: code}
		if err := s.notifier.SendAdminNotification(ctx, s.cfg.AdminEmail, data); err != nil {
			s.logger.WarnContext(ctx, "failed to queue admin notification",
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	registrationsTotal.Inc()
	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", strconv.FormatInt(user.ID, 10)),
		slog.String("role", string(roleName)),
	)
	return user, nil
}

// issueActivationCode stores a fresh ACTIVATION token for the user. Codes
// are six digits, so a collision with an outstanding code is retried.
func (s *AuthService) issueActivationCode(ctx context.Context, userID int64) (string, error) {
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("generate activation code: %w", err)
		}
		now := s.now()
		tok := &domain.Token{
			Value:     code,
			Type:      domain.TokenActivation,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.ActivationTTL),
			UserID:    userID,
		}
		err = s.tokens.Create(ctx, tok)
		if err == nil {
			tokensIssuedTotal.WithLabelValues(string(domain.TokenActivation)).Inc()
			return code, nil
		}
		if !errors.Is(err, apperrors.ErrAlreadyExists) || attempt == activationCodeAttempts {
			return "", fmt.Errorf("store activation code: %w", err)
		}
	}
}

// discardUser removes an account whose registration could not complete so
// the email can be registered again.
func (s *AuthService) discardUser(ctx context.Context, u *domain.User) {
	if err := s.users.Delete(context.WithoutCancel(ctx), u.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove incomplete registration",
			slog.String("user_id", strconv.FormatInt(u.ID, 10)),
			slog.String("error", err.Error()),
		)
	}
}

// Activate consumes an activation code and enables its account.
func (s *AuthService) Activate(ctx context.Context, code string) (*domain.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidActivationCode
	}

	now := s.now()
	var user *domain.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		tok, err := tx.Tokens.Consume(ctx, code, domain.TokenActivation, now)
		if err != nil {
			if !errors.Is(err, repository.ErrNotConsumed) {
				return fmt.Errorf("consume activation code: %w", err)
			}
			return classify(domain.StateOf(tok, now),
				domain.ErrInvalidActivationCode, domain.ErrActivationCodeAlreadyUsed, domain.ErrActivationCodeExpired)
		}
		if err := tx.Users.Enable(ctx, tok.UserID); err != nil {
			return fmt.Errorf("enable user: %w", err)
		}
		if user, err = tx.Users.GetByID(ctx, tok.UserID); err != nil {
			return fmt.Errorf("load activated user: %w", err)
		}
		return nil
	})
	countConsume(domain.TokenActivation, err)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishUserActivated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.activated event",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account activated",
		slog.String("user_id", strconv.FormatInt(user.ID, 10)),
	)
	return user, nil
}

// Authenticate verifies credentials and opens a login session. Every
// credential failure is reported as domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)

	if s.throttle != nil {
		if err := s.throttle.Check(ctx, email); err != nil {
			authAttemptsTotal.WithLabelValues("throttled").Inc()
			return nil, err
		}
	}

	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || !errors.Is(appErr, apperrors.ErrUnauthorized) {
			authAttemptsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("verify credentials: %w", err)
		}
		s.logger.DebugContext(ctx, "login rejected",
			slog.String("email", logger.MaskEmail(email)),
			slog.String("reason", appErr.Code),
		)
		if s.throttle != nil {
			s.throttle.RecordFailure(ctx, email)
		}
		authAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.codec.Issue(user.Email, auth.SessionClaims{
		UserID:      user.ID,
		Authorities: user.Authorities(),
	})
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	if err := s.tokens.Create(ctx, &domain.Token{
		Value:     token,
		Type:      domain.TokenLogin,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
		UserID:    user.ID,
	}); err != nil {
		return nil, fmt.Errorf("store session token: %w", err)
	}
	tokensIssuedTotal.WithLabelValues(string(domain.TokenLogin)).Inc()

	if s.throttle != nil {
		s.throttle.Reset(ctx, email)
	}
	authAttemptsTotal.WithLabelValues("success").Inc()

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", strconv.FormatInt(user.ID, 10)),
	)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes a login session. An optional "Bearer " prefix is accepted.
func (s *AuthService) Logout(ctx context.Context, tokenValue string) error {
	tokenValue = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenValue), "Bearer "))
	if tokenValue == "" {
		return domain.ErrTokenNotFound
	}

	now := s.now()
	tok, err := s.tokens.Consume(ctx, tokenValue, domain.TokenLogin, now)
	if err != nil {
		if !errors.Is(err, repository.ErrNotConsumed) {
			return fmt.Errorf("revoke session: %w", err)
		}
		err = classify(domain.StateOf(tok, now),
			domain.ErrTokenNotFound, domain.ErrTokenAlreadyRevoked, domain.ErrTokenExpired)
		countConsume(domain.TokenLogin, err)
		return err
	}
	countConsume(domain.TokenLogin, nil)

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", strconv.FormatInt(tok.UserID, 10)),
	)
	return nil
}

// InitiateReset revokes any outstanding reset tokens of the account, issues
// a new one and queues the reset email.
func (s *AuthService) InitiateReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ErrEmailNotFound
		}
		return fmt.Errorf("look up user: %w", err)
	}

	now := s.now()
	tok := &domain.Token{
		Value:     auth.NewResetToken(),
		Type:      domain.TokenPasswordReset,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ResetTTL),
		UserID:    user.ID,
	}
	// The user row lock orders concurrent requests so that only the last
	// token issued stays usable.
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Users.LockByID(ctx, user.ID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if _, err := tx.Tokens.RevokeAllForUser(ctx, user.ID, domain.TokenPasswordReset); err != nil {
			return fmt.Errorf("revoke previous reset tokens: %w", err)
		}
		if err := tx.Tokens.Create(ctx, tok); err != nil {
			return fmt.Errorf("store reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	tokensIssuedTotal.WithLabelValues(string(domain.TokenPasswordReset)).Inc()

	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, user.FullName(), tok.Value); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue password reset email",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishPasswordResetRequested(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset_requested event",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", strconv.FormatInt(user.ID, 10)),
	)
	return nil
}

// ResetPassword consumes a reset token, stores the new password, enables the
// account and terminates every login session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return domain.ErrInvalidToken
	}

	now := s.now()
	tok, err := s.tokens.GetByValue(ctx, tokenValue, domain.TokenPasswordReset)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("look up reset token: %w", err)
	}
	if state := domain.StateOf(tok, now); state != domain.TokenStateUsable {
		return classifyReset(state)
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		consumed, err := tx.Tokens.Consume(ctx, tokenValue, domain.TokenPasswordReset, now)
		if err != nil {
			if !errors.Is(err, repository.ErrNotConsumed) {
				return fmt.Errorf("consume reset token: %w", err)
			}
			return classifyReset(domain.StateOf(consumed, now))
		}
		tok = consumed
		if err := tx.Users.UpdatePassword(ctx, tok.UserID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if revoked, err = tx.Tokens.RevokeAllForUser(ctx, tok.UserID, domain.TokenLogin); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	countConsume(domain.TokenPasswordReset, err)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, tok.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load user after password reset",
			slog.String("user_id", strconv.FormatInt(tok.UserID, 10)),
			slog.String("error", err.Error()),
		)
	} else if err := s.events.PublishPasswordChanged(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", strconv.FormatInt(user.ID, 10)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", strconv.FormatInt(tok.UserID, 10)),
		slog.Int64("sessions_revoked", revoked),
	)
	return nil
}

// SweepExpired deletes every token whose expiry has passed.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	sweptTokensTotal.Add(float64(n))
	s.logger.InfoContext(ctx, "expired tokens swept", slog.Int64("deleted", n))
	return n, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// classify maps a failed single-use transition to the caller's error set.
func classify(state domain.TokenState, missing, revoked, expired error) error {
	switch state {
	case domain.TokenStateMissing:
		return missing
	case domain.TokenStateRevoked:
		return revoked
	case domain.TokenStateExpired:
		return expired
	default:
		return domain.ErrTokenStateUnknown
	}
}

func classifyReset(state domain.TokenState) error {
	return classify(state, domain.ErrInvalidToken, domain.ErrTokenAlreadyUsed, domain.ErrResetTokenExpired)
}

func countConsume(tokenType domain.TokenType, err error) {
	outcome := "consumed"
	var appErr *apperrors.AppError
	switch {
	case err == nil:
	case errors.As(err, &appErr):
		outcome = strings.ToLower(appErr.Code)
	default:
		outcome = "error"
	}
	tokensConsumedTotal.WithLabelValues(string(tokenType), outcome).Inc()
}
