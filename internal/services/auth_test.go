package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc     *AuthService
	users   *repository.UserRepo
	mail    *recordingMailer
	events  *events.Memory
	metrics *counter
}

func newAuthFixture(t *testing.T, codes ...string) *authFixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"111111", "222222", "333333"}
	}
	d := setupDB(t)
	f := &authFixture{
		users:   repository.NewUserRepo(d),
		mail:    &recordingMailer{},
		events:  &events.Memory{},
		metrics: newCounter(),
	}
	f.svc = NewAuthService(f.users, auth.BcryptHasher{Cost: 4}, testCodec(t), &seqOTP{codes: codes}, f.mail)
	f.svc.Events = f.events
	f.svc.Metrics = f.metrics
	f.svc.Log = quietLog()
	return f
}

func registerInput(email string) RegisterInput {
	return RegisterInput{Email: email, Password: "s3cret!", FirstName: "Ada", LastName: "Lovelace"}
}

func TestRegister_CreatesPendingUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerInput("  Ada@Example.com "))
	require.NoError(t, err)
	assert.True(t, res.OTPDelivered)
	assert.Equal(t, "ada@example.com", res.User.Email)

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserInactive, stored.Status)
	assert.Equal(t, models.RoleEmployee, stored.Role)
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.OTP)
	assert.Len(t, *stored.OTP, 6)
	assert.Equal(t, *stored.OTP, f.mail.codes["ada@example.com"])
	assert.NotEqual(t, "s3cret!", stored.PasswordHash)

	assert.Equal(t, []string{events.UserRegistered}, f.events.Types())
	assert.Equal(t, 1, f.metrics.get("register"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("dup@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerInput("DUP@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_MailFailureKeepsUser(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("smtp: connection refused")
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerInput("offline@example.com"))
	require.NoError(t, err)
	assert.False(t, res.OTPDelivered)

	_, err = f.users.FindByEmail(ctx, "offline@example.com")
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t, "424242")
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("v@example.com"))
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, "nobody@example.com", "424242")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("wrong code", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, "v@example.com", "000000")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
	t.Run("empty code", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, "v@example.com", "")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
	t.Run("correct code", func(t *testing.T) {
		sess, err := f.svc.VerifyEmail(ctx, "v@example.com", "424242")
		require.NoError(t, err)
		assert.Equal(t, "bearer", sess.TokenType)
		assert.Equal(t, models.UserActive, sess.User.Status)

		sub, err := testCodec(t).Verify(sess.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, sub)

		stored, err := f.users.FindByEmail(ctx, "v@example.com")
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
		assert.Nil(t, stored.OTP)
	})
	t.Run("code is single use", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, "v@example.com", "424242")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	assert.Contains(t, f.events.Types(), events.UserVerified)
}

func TestVerifyEmail_SuspendedPendingUser(t *testing.T) {
	f := newAuthFixture(t, "424242", "515151")
	ctx := context.Background()
	res, err := f.svc.Register(ctx, registerInput("s@example.com"))
	require.NoError(t, err)
	require.NoError(t, f.users.Update(ctx, res.User.ID, map[string]any{"status": models.UserSuspended}))

	_, err = f.svc.VerifyEmail(ctx, "s@example.com", "424242")
	assert.ErrorIs(t, err, ErrAccountNotActive)
	_, err = f.svc.ResendOTP(ctx, "s@example.com")
	assert.ErrorIs(t, err, ErrAccountNotActive)

	stored, err := f.users.FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserSuspended, stored.Status)
	assert.False(t, stored.IsVerified)

	_, err = f.svc.Login(ctx, "s@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrAccountNotActive)
	assert.NotContains(t, f.events.Types(), events.UserVerified)
}

func TestRegister_Role(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	manager := models.RoleManager
	in := registerInput("m@example.com")
	in.Role = &manager
	res, err := f.svc.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, res.User.Role)

	admin := models.RoleAdmin
	in = registerInput("root@example.com")
	in.Role = &admin
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.FindByEmail(ctx, "root@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, "123123")
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("l@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "l@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrAccountNotActive, "unverified users cannot log in")

	_, err = f.svc.VerifyEmail(ctx, "l@example.com", "123123")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "l@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = f.svc.Login(ctx, "ghost@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = fixedClock(at)
	sess, err := f.svc.Login(ctx, "L@example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)

	stored, err := f.users.FindByEmail(ctx, "l@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsOnline)
	require.NotNil(t, stored.LastSeen)
	assert.True(t, stored.LastSeen.Equal(at))

	require.NoError(t, f.users.Update(ctx, stored.ID, map[string]any{"status": models.UserSuspended}))
	_, err = f.svc.Login(ctx, "l@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrAccountNotActive)

	assert.Equal(t, 2, f.metrics.get("login_failed"))
	assert.Equal(t, 1, f.metrics.get("login"))
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t, "555555")
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("a@example.com"))
	require.NoError(t, err)
	sess, err := f.svc.VerifyEmail(ctx, "a@example.com", "555555")
	require.NoError(t, err)

	u, err := f.svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	id, ok := f.svc.VerifyToken(ctx, sess.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, u.ID, id)

	for _, tok := range []string{"", "garbage", sess.AccessToken + "x"} {
		_, err := f.svc.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthenticated, "token %q", tok)
	}

	orphan, err := testCodec(t).Issue("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, orphan)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResendOTP(t *testing.T) {
	f := newAuthFixture(t, "111111", "222222")
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("r@example.com"))
	require.NoError(t, err)

	res, err := f.svc.ResendOTP(ctx, "r@example.com")
	require.NoError(t, err)
	assert.True(t, res.OTPDelivered)
	assert.Equal(t, "222222", f.mail.codes["r@example.com"])

	_, err = f.svc.VerifyEmail(ctx, "r@example.com", "111111")
	assert.ErrorIs(t, err, ErrInvalidCredential, "replaced code no longer works")
	_, err = f.svc.VerifyEmail(ctx, "r@example.com", "222222")
	require.NoError(t, err)

	_, err = f.svc.ResendOTP(ctx, "r@example.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.ResendOTP(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t, "999999")
	ctx := context.Background()
	_, err := f.svc.Register(ctx, registerInput("o@example.com"))
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, "o@example.com", "999999")
	require.NoError(t, err)
	sess, err := f.svc.Login(ctx, "o@example.com", "s3cret!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, sess.User.ID))
	stored, err := f.users.FindByID(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)

	assert.ErrorIs(t, f.svc.Logout(ctx, "missing"), ErrNotFound)
}
