package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/mailer"
	"github.com/utafrali/petcare-user/internal/repository"
	"github.com/utafrali/petcare-user/internal/repository/memory"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Recording notifier ---

type sentMail struct {
	kind  string
	to    string
	value string
}

type recordingNotifier struct {
	mu            sync.Mutex
	sent          []sentMail
	activationErr error
}

func (n *recordingNotifier) record(kind, to, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, to: to, value: value})
}

func (n *recordingNotifier) SendActivationEmail(_ context.Context, to, _, code string) error {
	if n.activationErr != nil {
		return n.activationErr
	}
	n.record("activation", to, code)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, _, token string) error {
	n.record("reset", to, token)
	return nil
}

func (n *recordingNotifier) SendAdminNotification(_ context.Context, to string, data mailer.AdminData) error {
	n.record("admin", to, data.Email)
	return nil
}

// last returns the most recent value of kind sent to to.
func (n *recordingNotifier) last(kind, to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind && n.sent[i].to == to {
			return n.sent[i].value
		}
	}
	return ""
}

// --- Mock event publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockEvents) PublishUserActivated(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockEvents) PublishPasswordResetRequested(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockEvents) PublishPasswordChanged(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockEvents) PublishProfileUpdated(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func newMockEvents() *mockEvents {
	m := &mockEvents{}
	for _, method := range []string{
		"PublishUserRegistered", "PublishUserActivated", "PublishPasswordResetRequested",
		"PublishPasswordChanged", "PublishProfileUpdated",
	} {
		m.On(method, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	return m
}

// --- Mock login throttle ---

type mockThrottle struct {
	mock.Mock
}

func (m *mockThrottle) Check(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockThrottle) RecordFailure(ctx context.Context, email string) {
	m.Called(ctx, email)
}

func (m *mockThrottle) Reset(ctx context.Context, email string) {
	m.Called(ctx, email)
}

// --- Failing user writes inside transactions ---

type failingUserWrites struct {
	repository.UserRepository
	err error
}

func (u failingUserWrites) Enable(context.Context, int64) error { return u.err }

func (u failingUserWrites) UpdatePassword(context.Context, int64, string) error { return u.err }

// failingTx runs units of work on the store, but every user write fails
// with err.
type failingTx struct {
	store *memory.Store
	err   error
}

func (f failingTx) WithinTx(ctx context.Context, fn func(context.Context, repository.Tx) error) error {
	return f.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		tx.Users = failingUserWrites{UserRepository: tx.Users, err: f.err}
		return fn(ctx, tx)
	})
}

// --- Fixture ---

type authFixture struct {
	store    *memory.Store
	svc      *AuthService
	sessions *SessionValidator
	codec    *auth.JWTCodec
	mail     *recordingNotifier
	events   *mockEvents
	clock    time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := memory.New()
	require.NoError(t, NewRoleSeeder(store.Roles(), testLogger()).Seed(context.Background()))

	hasher := auth.NewPasswordHasher(4)
	verifier, err := auth.NewCredentialVerifier(store.Users(), hasher)
	require.NoError(t, err)
	codec, err := auth.NewJWTCodec(testSecret, domain.LoginTTL)
	require.NoError(t, err)

	f := &authFixture{
		store:  store,
		codec:  codec,
		mail:   &recordingNotifier{},
		events: newMockEvents(),
		clock:  time.Now().UTC(),
	}
	f.svc = NewAuthService(AuthDeps{
		Users:    store.Users(),
		Roles:    store.Roles(),
		Tokens:   store.Tokens(),
		Tx:       store,
		Verifier: verifier,
		Hasher:   hasher,
		Codec:    codec,
		Notifier: f.mail,
		Events:   f.events,
	}, AuthConfig{AdminEmail: "admin@petcare.test"}, testLogger())
	f.svc.now = func() time.Time { return f.clock }

	f.sessions = NewSessionValidator(store.Tokens(), store.Users(), codec, testLogger())
	f.sessions.now = func() time.Time { return f.clock }
	return f
}

func (f *authFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func registerInput(email string) RegisterInput {
	return RegisterInput{FirstName: "Alice", LastName: "Smith", Email: email, Password: "pw12345678"}
}

// registerAndActivate creates an enabled account and returns it.
func (f *authFixture) registerAndActivate(t *testing.T, email string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.svc.Register(ctx, registerInput(email))
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, f.mail.last("activation", u.Email))
	require.NoError(t, err)
	return u
}
