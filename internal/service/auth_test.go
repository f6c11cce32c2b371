package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/mailer"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

var sixDigits = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// --- Register ---

func TestRegister_CreatesDisabledAccountWithActivationCode(t *testing.T) {
	f := newAuthFixture(t)

	u, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: " Alice ", LastName: "Smith", Email: "Alice@Example.com", Password: "pw12345678",
	})
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.FirstName)
	assert.False(t, u.Enabled)
	assert.False(t, u.Locked)
	assert.Equal(t, []domain.RoleName{domain.RolePetOwner}, u.Roles)
	assert.NotEqual(t, "pw12345678", u.PasswordHash)

	tokens := f.store.TokensFor(u.ID, domain.TokenActivation)
	require.Len(t, tokens, 1)
	assert.Regexp(t, sixDigits, tokens[0].Value)
	assert.Equal(t, f.clock.Add(15*time.Minute), tokens[0].ExpiresAt)
	assert.False(t, tokens[0].Revoked)

	assert.Equal(t, tokens[0].Value, f.mail.last("activation", "alice@example.com"))
	assert.Equal(t, "alice@example.com", f.mail.last("admin", "admin@petcare.test"))
	f.events.AssertCalled(t, "PublishUserRegistered", mock.Anything, mock.Anything)
}

func TestRegister_WithRequestedRole(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput("vet@example.com")
	in.Role = "veterinarian"
	u, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleName{domain.RoleVeterinarian}, u.Roles)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("dup@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerInput("DUP@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyRegistered)
}

func TestRegister_UnknownRole(t *testing.T) {
	f := newAuthFixture(t)

	in := registerInput("a@example.com")
	in.Role = "WIZARD"
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
}

func TestRegister_RoleNotSeeded(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.roles = &emptyRoles{}

	_, err := f.svc.Register(context.Background(), registerInput("a@example.com"))
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
}

type emptyRoles struct{}

func (emptyRoles) GetByName(context.Context, domain.RoleName) (*domain.Role, error) {
	return nil, domain.ErrRoleNotFound
}
func (emptyRoles) Upsert(context.Context, domain.RoleName, []string) error { return nil }
func (emptyRoles) List(context.Context) ([]domain.Role, error)             { return nil, nil }

func TestRegister_InputValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"short password", func(in *RegisterInput) { in.Password = "short" }, domain.ErrPasswordTooShort},
		{"seven characters", func(in *RegisterInput) { in.Password = "1234567" }, domain.ErrPasswordTooShort},
		{"password over bcrypt limit", func(in *RegisterInput) { in.Password = strings.Repeat("x", 73) }, apperrors.ErrInvalidInput},
		{"missing first name", func(in *RegisterInput) { in.FirstName = " " }, apperrors.ErrInvalidInput},
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }, apperrors.ErrInvalidInput},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			in := registerInput("a@example.com")
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegister_ActivationEmailNotQueued(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.activationErr = mailer.ErrQueueFull
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerInput("a@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailDeliveryFailed)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))

	exists, err := f.store.Users().ExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, exists, "incomplete registration must not keep the email")

	f.mail.activationErr = nil
	_, err = f.svc.Register(ctx, registerInput("a@example.com"))
	assert.NoError(t, err)
}

func TestRegister_RetriesCollidingActivationCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	codes := []string{"111111", "111111", "222222"}
	var calls int
	f.svc.newCode = func() (string, error) {
		c := codes[calls]
		calls++
		return c, nil
	}
	first, err := f.svc.Register(ctx, registerInput("first@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "111111", f.store.TokensFor(first.ID, domain.TokenActivation)[0].Value)

	second, err := f.svc.Register(ctx, registerInput("second@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "222222", f.store.TokensFor(second.ID, domain.TokenActivation)[0].Value)
	assert.Equal(t, 3, calls)
}

func TestRegister_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.svc.newCode = func() (string, error) { return "333333", nil }

	_, err := f.svc.Register(ctx, registerInput("first@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerInput("second@example.com"))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	exists, _ := f.store.Users().ExistsByEmail(ctx, "second@example.com")
	assert.False(t, exists)
}

// --- Activate ---

func TestActivate_EnablesAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)

	activated, err := f.svc.Activate(ctx, f.mail.last("activation", u.Email))
	require.NoError(t, err)
	assert.True(t, activated.Enabled)
	assert.Equal(t, u.ID, activated.ID)

	tok := f.store.TokensFor(u.ID, domain.TokenActivation)[0]
	assert.True(t, tok.Revoked)
	require.NotNil(t, tok.ValidatedAt)
	assert.Equal(t, f.clock, *tok.ValidatedAt)
	f.events.AssertCalled(t, "PublishUserActivated", mock.Anything, mock.Anything)
}

func TestActivate_SecondUseIsAlreadyUsed(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	code := f.mail.last("activation", u.Email)

	_, err = f.svc.Activate(ctx, code)
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, code)
	assert.ErrorIs(t, err, domain.ErrActivationCodeAlreadyUsed)
}

func TestActivate_Failures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Activate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidActivationCode)

	_, err = f.svc.Activate(ctx, "999999")
	assert.ErrorIs(t, err, domain.ErrInvalidActivationCode)

	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	code := f.mail.last("activation", u.Email)

	f.advance(15 * time.Minute)
	_, err = f.svc.Activate(ctx, code)
	assert.ErrorIs(t, err, domain.ErrActivationCodeExpired, "expiry is exclusive")

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestActivate_UsedAndExpiredReportsUsed(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	code := f.mail.last("activation", u.Email)

	_, err = f.svc.Activate(ctx, code)
	require.NoError(t, err)

	f.advance(time.Hour)
	_, err = f.svc.Activate(ctx, code)
	assert.ErrorIs(t, err, domain.ErrActivationCodeAlreadyUsed)
}

func TestActivate_ConcurrentAttemptsHaveOneWinner(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	code := f.mail.last("activation", u.Email)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		used      atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Activate(ctx, code)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrActivationCodeAlreadyUsed):
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(15), used.Load())
}

// --- Authenticate ---

func TestActivate_EnableFailureLeavesCodeUsable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	code := f.mail.last("activation", u.Email)

	f.svc.tx = failingTx{store: f.store, err: errors.New("connection reset")}
	_, err = f.svc.Activate(ctx, code)
	require.ErrorContains(t, err, "enable user")

	codes := f.store.TokensFor(u.ID, domain.TokenActivation)
	require.Len(t, codes, 1)
	assert.False(t, codes[0].Revoked)
	assert.Nil(t, codes[0].ValidatedAt)

	f.svc.tx = f.store
	activated, err := f.svc.Activate(ctx, code)
	require.NoError(t, err)
	assert.True(t, activated.Enabled)
}

func TestAuthenticate_IssuesStoredSession(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")

	res, err := f.svc.Authenticate(context.Background(), "A@Example.com ", "pw12345678")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.True(t, f.codec.Verify(res.Token, "a@example.com"))

	sessions := f.store.TokensFor(u.ID, domain.TokenLogin)
	require.Len(t, sessions, 1)
	assert.Equal(t, res.Token, sessions[0].Value)
	assert.Equal(t, res.ExpiresAt, sessions[0].ExpiresAt)
	assert.False(t, sessions[0].Revoked)

	claims, err := f.codec.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, []string{"ROLE_PET_OWNER"}, claims.Roles)
}

func TestAuthenticate_TwoLoginsYieldDistinctSessions(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	first, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)
	second, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Len(t, f.store.TokensFor(u.ID, domain.TokenLogin), 2)
}

func TestAuthenticate_UniformFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndActivate(t, "active@example.com")
	_, err := f.svc.Register(ctx, registerInput("pending@example.com"))
	require.NoError(t, err)

	cases := map[string][2]string{
		"wrong password": {"active@example.com", "wrong-password"},
		"unknown email":  {"ghost@example.com", "pw12345678"},
		"not activated":  {"pending@example.com", "pw12345678"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := f.svc.Authenticate(ctx, c[0], c[1])
			assert.Nil(t, res)
			assert.Same(t, domain.ErrInvalidCredentials, err)
		})
	}
}

func TestAuthenticate_Throttle(t *testing.T) {
	f := newAuthFixture(t)
	f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	throttle := &mockThrottle{}
	f.svc.throttle = throttle

	throttle.On("Check", mock.Anything, "a@example.com").Return(nil).Twice()
	throttle.On("RecordFailure", mock.Anything, "a@example.com").Once()
	throttle.On("Reset", mock.Anything, "a@example.com").Once()

	_, err := f.svc.Authenticate(ctx, "a@example.com", "nope-nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "a@example.com", "pw12345678")
	require.NoError(t, err)
	throttle.AssertExpectations(t)

	blocked := &mockThrottle{}
	blocked.On("Check", mock.Anything, "a@example.com").Return(domain.ErrTooManyLoginAttempts)
	f.svc.throttle = blocked

	_, err = f.svc.Authenticate(ctx, "a@example.com", "pw12345678")
	assert.ErrorIs(t, err, domain.ErrTooManyLoginAttempts)
	blocked.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

// --- Logout ---

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	res, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, "Bearer "+res.Token))

	tok := f.store.TokensFor(u.ID, domain.TokenLogin)[0]
	assert.True(t, tok.Revoked)
	assert.NotNil(t, tok.ValidatedAt)

	assert.ErrorIs(t, f.svc.Logout(ctx, res.Token), domain.ErrTokenAlreadyRevoked)
}

func TestLogout_Failures(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Logout(ctx, ""), domain.ErrTokenNotFound)
	assert.ErrorIs(t, f.svc.Logout(ctx, "Bearer "), domain.ErrTokenNotFound)
	assert.ErrorIs(t, f.svc.Logout(ctx, "a.b.c"), domain.ErrTokenNotFound)

	res, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)
	f.advance(25 * time.Hour)
	assert.ErrorIs(t, f.svc.Logout(ctx, res.Token), domain.ErrTokenExpired)
}

// --- Password reset ---

func TestInitiateReset_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	assert.ErrorIs(t, f.svc.InitiateReset(context.Background(), "ghost@example.com"), domain.ErrEmailNotFound)
}

func TestInitiateReset_IssuesToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")

	require.NoError(t, f.svc.InitiateReset(context.Background(), "A@example.com"))

	tokens := f.store.TokensFor(u.ID, domain.TokenPasswordReset)
	require.Len(t, tokens, 1)
	assert.Len(t, tokens[0].Value, 36)
	assert.Equal(t, f.clock.Add(time.Hour), tokens[0].ExpiresAt)
	assert.Equal(t, tokens[0].Value, f.mail.last("reset", u.Email))
	f.events.AssertCalled(t, "PublishPasswordResetRequested", mock.Anything, mock.Anything)
}

func TestInitiateReset_SecondRequestRevokesFirst(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	first := f.mail.last("reset", u.Email)
	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	second := f.mail.last("reset", u.Email)
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, first, "new-password"), domain.ErrTokenAlreadyUsed)
	assert.NoError(t, f.svc.ResetPassword(ctx, second, "new-password"))
}

func TestInitiateReset_ConcurrentRequestsLeaveOneUsableToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	const requests = 8
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.InitiateReset(ctx, u.Email))
		}()
	}
	wg.Wait()

	tokens := f.store.TokensFor(u.ID, domain.TokenPasswordReset)
	require.Len(t, tokens, requests)
	usable := 0
	for _, tok := range tokens {
		if !tok.Revoked {
			usable++
		}
	}
	assert.Equal(t, 1, usable)
}

func TestResetPassword_LengthBoundary(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()
	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	token := f.mail.last("reset", u.Email)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "12345"), domain.ErrPasswordTooShort)
	assert.False(t, f.store.TokensFor(u.ID, domain.TokenPasswordReset)[0].Revoked, "a rejected password must not burn the token")

	require.NoError(t, f.svc.ResetPassword(ctx, token, "12345678"))

	_, err := f.svc.Authenticate(ctx, u.Email, "12345678")
	assert.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, u.Email, "pw12345678")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestResetPassword_TerminatesSessions(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	s1, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)
	s2, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	require.NoError(t, f.svc.ResetPassword(ctx, f.mail.last("reset", u.Email), "brand-new-pw"))

	for _, tok := range []string{s1.Token, s2.Token} {
		_, err := f.sessions.Validate(ctx, tok)
		assert.ErrorIs(t, err, domain.ErrSessionTerminated)
	}
	f.events.AssertCalled(t, "PublishPasswordChanged", mock.Anything, mock.Anything)
}

func TestResetPassword_EnablesAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput("pending@example.com"))
	require.NoError(t, err)

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	require.NoError(t, f.svc.ResetPassword(ctx, f.mail.last("reset", u.Email), "brand-new-pw"))

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
}

func TestResetPassword_TokenFailures(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "", "new-password"), domain.ErrInvalidToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "no-such-token", "new-password"), domain.ErrInvalidToken)

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	token := f.mail.last("reset", u.Email)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-password"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "another-password"), domain.ErrTokenAlreadyUsed)

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	expired := f.mail.last("reset", u.Email)
	f.advance(time.Hour + time.Second)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, expired, "new-password"), domain.ErrResetTokenExpired)
}

func TestResetPassword_ExpiryCheckedBeforeLength(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	f.advance(2 * time.Hour)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, f.mail.last("reset", u.Email), "x"), domain.ErrResetTokenExpired)
}

func TestResetPassword_UpdateFailureChangesNothing(t *testing.T) {
	f := newAuthFixture(t)
	u := f.registerAndActivate(t, "a@example.com")
	ctx := context.Background()
	session, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)
	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	token := f.mail.last("reset", u.Email)

	f.svc.tx = failingTx{store: f.store, err: errors.New("connection reset")}
	err = f.svc.ResetPassword(ctx, token, "new-password")
	require.ErrorContains(t, err, "update password")

	_, err = f.sessions.Validate(ctx, session.Token)
	assert.NoError(t, err, "session survives a failed reset")
	_, err = f.svc.Authenticate(ctx, u.Email, "pw12345678")
	assert.NoError(t, err, "old password still works")

	f.svc.tx = f.store
	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-password"))
	_, err = f.sessions.Validate(ctx, session.Token)
	assert.Error(t, err)
}

// --- Sweep ---

func TestSweepExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := f.registerAndActivate(t, "a@example.com")
	require.NoError(t, f.svc.InitiateReset(ctx, u.Email))
	_, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)

	// The activation code (15m) and the reset token (1h) lapse, the 24h
	// session does not.
	f.advance(2 * time.Hour)
	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Empty(t, f.store.TokensFor(u.ID, domain.TokenActivation))
	assert.Empty(t, f.store.TokensFor(u.ID, domain.TokenPasswordReset))
	assert.Len(t, f.store.TokensFor(u.ID, domain.TokenLogin), 1)

	n, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepExpired_KeepsRevokedSessionUntilExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u := f.registerAndActivate(t, "a@example.com")
	res, err := f.svc.Authenticate(ctx, u.Email, "pw12345678")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, "Bearer "+res.Token))

	f.advance(time.Hour)
	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the consumed activation code has lapsed")

	sessions := f.store.TokensFor(u.ID, domain.TokenLogin)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Revoked)

	f.advance(domain.LoginTTL)
	n, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, f.store.TokensFor(u.ID, domain.TokenLogin))
}
