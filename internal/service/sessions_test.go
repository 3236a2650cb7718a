package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestSessions_IssueThenVerify(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")

	pair, err := svc.Sessions().IssueTokens(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), pair.AccessExpiresAt, 5*time.Second)
	require.WithinDuration(t, time.Now().Add(240*time.Hour), pair.RefreshExpiresAt, 5*time.Second)

	stored, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)

	id, err := svc.Sessions().VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
	require.Equal(t, "alice", id.Username)
	require.Equal(t, "alice@example.com", id.Email)
	require.Equal(t, "Test alice", id.FullName)
}

func TestSessions_IssueTokens_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)

	_, err := svc.Sessions().IssueTokens(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessions_IssueTokens_SlotWriteFailure(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	uid := uuid.New()

	st.EXPECT().UserByID(gomock.Any(), uid).Return(&models.User{ID: uid, Username: "alice"}, nil)
	st.EXPECT().SetRefreshToken(gomock.Any(), uid, gomock.Any()).Return(errors.New("write conflict"))

	_, err := svc.Sessions().IssueTokens(context.Background(), uid)
	require.ErrorIs(t, err, ErrInternal)
}

func TestSessions_VerifyAccessToken_Rejects(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")
	cfg := testCfg()

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UserID: u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignStr, err := foreign.SignedString([]byte("someone-else"))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, accessClaims{
		UserID: u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneStr, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UserID:           u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
	})
	noExpStr, err := noExp.SignedString([]byte(cfg.AccessSecret))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":             "",
		"garbage":           "not-a-jwt",
		"refresh as access": pair.RefreshToken,
		"foreign secret":    foreignStr,
		"alg none":          noneStr,
		"no exp":            noExpStr,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Sessions().VerifyAccessToken(ctx, raw)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestSessions_VerifyAccessToken_Expired(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return t0 }

	mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	svc.clock = func() time.Time { return t0.Add(15*time.Minute - time.Second) }
	_, err := svc.Sessions().VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	svc.clock = func() time.Time { return t0.Add(15*time.Minute + time.Second) }
	_, err = svc.Sessions().VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessions_VerifyAccessToken_DeletedUser(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	uid := uuid.New()
	user := &models.User{ID: uid, Username: "alice", Email: "alice@example.com"}

	pair, err := svc.Sessions().sign(user)
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), uid).Return(nil, storage.ErrNotFound)

	_, err = svc.Sessions().VerifyAccessToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessions_Rotate(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")
	first := mustLogin(t, svc, "alice")

	second, err := svc.Sessions().Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	stored, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, second.RefreshToken, stored.RefreshToken)

	// Повторное предъявление использованного токена.
	_, err = svc.Sessions().Rotate(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "refresh token is expired or used", Message(err))

	// Слот не тронут неудачной попыткой.
	stored, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, second.RefreshToken, stored.RefreshToken)
}

func TestSessions_Rotate_Rejects(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	_, err := svc.Sessions().Rotate(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "unauthorized request", Message(err))

	_, err = svc.Sessions().Rotate(ctx, "garbage")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "invalid refresh token", Message(err))

	_, err = svc.Sessions().Rotate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "invalid refresh token", Message(err))
}

func TestSessions_Rotate_Expired(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return t0 }

	mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	svc.clock = func() time.Time { return t0.Add(240*time.Hour + time.Second) }

	_, err := svc.Sessions().Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Слот не тронут: просроченный токен остаётся сохранённым, но не принимается.
	u, err := svc.storage.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, u.RefreshToken)
}

func TestSessions_Rotate_LastSecondBeforeExpiry(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return t0 }

	mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	svc.clock = func() time.Time { return t0.Add(240*time.Hour - time.Second) }

	next, err := svc.Sessions().Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
}

func TestSessions_Rotate_LostSwapIsUnauthorized(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	uid := uuid.New()
	user := &models.User{ID: uid, Username: "alice"}

	pair, err := svc.Sessions().sign(user)
	require.NoError(t, err)
	user.RefreshToken = pair.RefreshToken

	st.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil)
	st.EXPECT().SwapRefreshToken(gomock.Any(), uid, pair.RefreshToken, gomock.Any()).Return(storage.ErrTokenMismatch)

	_, err = svc.Sessions().Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "refresh token is expired or used", Message(err))
}

func TestSessions_Rotate_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	svc, _ := newMemSvc(t)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	const n = 16
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		denials atomic.Int32
		start   = make(chan struct{})
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := svc.Sessions().Rotate(ctx, pair.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrUnauthorized):
				denials.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(n-1), denials.Load())
}

func TestSessions_Revoke(t *testing.T) {
	t.Parallel()

	svc, st := newMemSvc(t)
	ctx := context.Background()

	u := mustRegister(t, svc, "alice", "alice@example.com")
	pair := mustLogin(t, svc, "alice")

	require.NoError(t, svc.Sessions().Revoke(ctx, u.ID))
	require.NoError(t, svc.Sessions().Revoke(ctx, u.ID))
	require.NoError(t, svc.Sessions().Revoke(ctx, uuid.New()))

	stored, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)

	_, err = svc.Sessions().Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Access-токен действует до истечения срока.
	_, err = svc.Sessions().VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestSessions_Revoke_StorageFailure(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	uid := uuid.New()

	st.EXPECT().SetRefreshToken(gomock.Any(), uid, "").Return(errors.New("timeout"))

	err := svc.Sessions().Revoke(context.Background(), uid)
	require.ErrorIs(t, err, ErrInternal)
}
