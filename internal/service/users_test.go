package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// fakeLimiter — ограничитель в памяти с порогом max.
type fakeLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	err      error
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{max: max, failures: make(map[string]int)}
}

func (l *fakeLimiter) Blocked(_ context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return false, l.err
	}

	return l.failures[identity] >= l.max, nil
}

func (l *fakeLimiter) RegisterFailure(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}

	l.failures[identity]++
	return nil
}

func (l *fakeLimiter) Reset(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, identity)
	return nil
}

func (l *fakeLimiter) Close() error { return nil }

func (l *fakeLimiter) count(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.failures[identity]
}

func TestRegister_OK_NormalizesIdentity(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Username:  "  Alice ",
		Email:     "Alice@Example.COM",
		Password:  "secret123",
		FullName:  " Alice Liddell ",
		AvatarKey: testAvatar,
		CoverKey:  "https://cdn.example.com/cover/alice.png",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, "Alice Liddell", u.FullName)
	require.Equal(t, testAvatar, u.AvatarURL)
	require.Equal(t, "https://cdn.example.com/cover/alice.png", u.CoverImageURL)
	require.Empty(t, u.WatchHistory)

	stored, err := st.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)
	require.NotEqual(t, "secret123", stored.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)

	valid := RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "secret123",
		FullName:  "Alice",
		AvatarKey: testAvatar,
	}

	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
		msg    string
	}{
		{"empty username", func(in *RegisterInput) { in.Username = "  " }, "username is required"},
		{"short username", func(in *RegisterInput) { in.Username = "al" }, "username must be at least 3 characters"},
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }, "email must be a valid email"},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }, "password must be at least 6 characters"},
		{"password over 72 bytes", func(in *RegisterInput) { in.Password = strings.Repeat("я", 40) }, "password must be at most 72 bytes"},
		{"no full name", func(in *RegisterInput) { in.FullName = "" }, "full_name is required"},
		{"no avatar", func(in *RegisterInput) { in.AvatarKey = "" }, "avatar is required"},
		{"avatar not a url", func(in *RegisterInput) { in.AvatarKey = "avatar/x.png" }, "invalid media upload"},
		{"cover not a url", func(in *RegisterInput) { in.CoverKey = "ftp://x/y.png" }, "invalid media upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
			require.Equal(t, tt.msg, Message(err))
		})
	}
}

func TestRegister_MultibytePasswordAtLimit(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	password := strings.Repeat("я", 36) // 72 байта
	_, err := svc.Register(ctx, RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  password,
		FullName:  "Alice",
		AvatarKey: testAvatar,
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, LoginInput{Username: "alice", Password: password})
	require.NoError(t, err)
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	mustRegister(t, svc, "alice", "alice@example.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username:  "ALICE",
		Email:     "new@example.com",
		Password:  "secret123",
		FullName:  "Alice 2",
		AvatarKey: testAvatar,
	})
	require.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestLogin_WrongPasswordKeepsSlot(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	_, _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "invalid user credentials", Message(err))

	stored, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)
}

func TestLogin_OK_StoresRefresh(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")

	u, pair, err := svc.Login(ctx, LoginInput{Email: " ALICE@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)

	stored, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)

	id, err := svc.Sessions().VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
}

func TestLogin_UnknownUserAndValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, LoginInput{Username: "ghost", Password: "secret123"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "user does not exist", Message(err))

	_, _, err = svc.Login(ctx, LoginInput{Password: "secret123"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "username or email is required", Message(err))

	_, _, err = svc.Login(ctx, LoginInput{Username: "alice"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "password is required", Message(err))
}

func TestLogin_FallsBackToEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	mustRegister(t, svc, "alice", "alice@example.com")

	u, _, err := svc.Login(context.Background(), LoginInput{
		Username: "not-alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	lim := newFakeLimiter(3)
	svc.SetLoginLimiter(lim)
	m := metrics.New()
	svc.SetMetrics(m)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")

	for i := 0; i < 3; i++ {
		_, _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "bad-pass"})
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	require.Equal(t, 3, lim.count("alice"))

	// Даже верный пароль отклоняется до истечения окна.
	_, _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.ErrorIs(t, err, ErrRateLimited)

	require.NoError(t, lim.Reset(ctx, "alice"))
	_, _, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	const want = `
# HELP videoshare_auth_operations_total Auth operations by name and outcome.
# TYPE videoshare_auth_operations_total counter
videoshare_auth_operations_total{op="login",result="denied"} 3
videoshare_auth_operations_total{op="login",result="limited"} 1
videoshare_auth_operations_total{op="login",result="ok"} 1
videoshare_auth_operations_total{op="register",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "videoshare_auth_operations_total"))
}

func TestLogin_SuccessResetsLimiter(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	lim := newFakeLimiter(5)
	svc.SetLoginLimiter(lim)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")

	_, _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "bad-pass"})
	require.Error(t, err)
	_, _, err = svc.Login(ctx, LoginInput{Username: "ghost", Password: "bad-pass"})
	require.Error(t, err)
	require.Equal(t, 1, lim.count("alice"))
	require.Equal(t, 1, lim.count("ghost"))

	mustLogin(t, svc, "alice")
	require.Equal(t, 0, lim.count("alice"))
}

func TestLogin_LimiterDownFailsOpen(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	lim := newFakeLimiter(1)
	lim.err = errors.New("redis: connection refused")
	svc.SetLoginLimiter(lim)

	h := newCapHandler()
	ctx := log.Into(context.Background(), slog.New(h))

	mustRegister(t, svc, "alice", "alice@example.com")

	_, _, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	rec, ok := h.find("login_limiter_unavailable")
	require.True(t, ok)
	require.Equal(t, slog.LevelWarn, rec.level)
}

func TestLogin_LogsDoNotLeakSecrets(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	h := newCapHandler()
	ctx := log.Into(context.Background(), slog.New(h))

	mustRegister(t, svc, "alice", "alice@example.com")

	_, _, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-pass"})
	require.Error(t, err)
	_, pair, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)

	rec, ok := h.find("login_succeeded")
	require.True(t, ok)
	require.Equal(t, "al***@example.com", rec.attrs["identity"])

	for _, r := range h.all() {
		for _, v := range r.attrs {
			s, _ := v.(string)
			require.NotContains(t, s, "wrong-pass")
			require.NotContains(t, s, "secret123")
			require.NotContains(t, s, "alice@example.com")
			require.False(t, strings.Contains(s, pair.RefreshToken))
		}
	}
}

func TestLogin_StorageFailureIsInternal(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, errors.New("connection reset"))

	_, _, err := svc.Login(context.Background(), LoginInput{Username: "alice", Password: "secret123"})
	require.ErrorIs(t, err, ErrInternal)
	require.Equal(t, "internal error", Message(err))
}

func TestLogoutThenRefreshFails(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	require.NoError(t, svc.Logout(ctx, u.ID))
	require.NoError(t, svc.Logout(ctx, u.ID))

	_, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshTokens_RotatesAndInvalidatesOld(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")
	first := mustLogin(t, svc, "alice")

	second, err := svc.RefreshTokens(ctx, " "+first.RefreshToken+" ")
	require.NoError(t, err)

	_, err = svc.RefreshTokens(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	third, err := svc.RefreshTokens(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")

	err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "secret123", NewPassword: "newpass1", ConfirmPassword: "newpass2"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "new password and confirm password must match", Message(err))

	err = svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "wrong-old", NewPassword: "newpass1", ConfirmPassword: "newpass1"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "invalid old password", Message(err))

	err = svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "secret123", NewPassword: "new", ConfirmPassword: "new"})
	require.ErrorIs(t, err, ErrValidation)

	long := strings.Repeat("я", 40)
	err = svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "secret123", NewPassword: long, ConfirmPassword: long})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "new_password must be at most 72 bytes", Message(err))

	err = svc.ChangePassword(ctx, uuid.New(), ChangePasswordInput{OldPassword: "secret123", NewPassword: "newpass1", ConfirmPassword: "newpass1"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "secret123", NewPassword: "newpass1", ConfirmPassword: "newpass1"}))

	_, _, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "secret123"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "newpass1"})
	require.NoError(t, err)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")

	got, err := svc.CurrentUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "alice", got.Username)

	_, err = svc.CurrentUser(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	alice := mustRegister(t, svc, "alice", "alice@example.com")
	mustRegister(t, svc, "bob", "bob@example.com")

	got, err := svc.UpdateAccount(ctx, alice.ID, UpdateAccountInput{
		FullName: "Alice L.",
		Email:    "ALICE@new.example.com",
		Username: "Alice2",
	})
	require.NoError(t, err)
	require.Equal(t, "Alice L.", got.FullName)
	require.Equal(t, "alice@new.example.com", got.Email)
	require.Equal(t, "alice2", got.Username)

	_, err = svc.UpdateAccount(ctx, alice.ID, UpdateAccountInput{FullName: "A", Email: "bob@example.com", Username: "alice2"})
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = svc.UpdateAccount(ctx, alice.ID, UpdateAccountInput{FullName: "", Email: "a@example.com", Username: "alice2"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateAccount(ctx, uuid.New(), UpdateAccountInput{FullName: "X", Email: "x@example.com", Username: "xxx"})
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Login(ctx, LoginInput{Username: "alice2", Password: "secret123"})
	require.NoError(t, err)
}

func TestUpdateAccount_StorageFailure(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	uid := uuid.New()

	st.EXPECT().UpdateAccount(gomock.Any(), uid, models.AccountUpdate{
		FullName: "Alice",
		Email:    "alice@example.com",
		Username: "alice",
	}, gomock.Any()).Return(nil, errors.New("boom"))

	_, err := svc.UpdateAccount(context.Background(), uid, UpdateAccountInput{FullName: "Alice", Email: "alice@example.com", Username: "alice"})
	require.ErrorIs(t, err, ErrInternal)
}

func TestResultOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, metrics.ResultOK, resultOf(nil))
	require.Equal(t, metrics.ResultDenied, resultOf(newError(ErrUnauthorized, "x")))
	require.Equal(t, metrics.ResultInvalid, resultOf(newError(ErrDuplicateIdentity, "x")))
	require.Equal(t, metrics.ResultLimited, resultOf(ErrRateLimited))
	require.Equal(t, metrics.ResultError, resultOf(storage.ErrNotFound))
}
