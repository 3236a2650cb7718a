package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage/memory"
	"github.com/pribylovaa/video-share/mocks"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAvatar = "https://cdn.example.com/avatar/alice.png"

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "unit-access-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshSecret:   "unit-refresh-secret",
		RefreshTokenTTL: 240 * time.Hour,
		Issuer:          "video-share",
		BcryptCost:      bcrypt.MinCost,
	}
}

// newMemSvc — сервис поверх in-memory хранилища.
func newMemSvc(t *testing.T) (*Service, *memory.Storage) {
	t.Helper()

	st := memory.New()
	return New(st, testCfg()), st
}

// newMockSvc — сервис поверх gomock-хранилища.
func newMockSvc(t *testing.T) (*Service, *mocks.MockStorage) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	return New(st, testCfg()), st
}

// mustRegister регистрирует пользователя с паролем "secret123".
func mustRegister(t *testing.T, svc *Service, username, email string) *models.PublicUser {
	t.Helper()

	u, err := svc.Register(context.Background(), RegisterInput{
		Username:  username,
		Email:     email,
		Password:  "secret123",
		FullName:  "Test " + username,
		AvatarKey: testAvatar,
	})
	require.NoError(t, err)

	return u
}

func mustLogin(t *testing.T, svc *Service, username string) *models.TokenPair {
	t.Helper()

	_, pair, err := svc.Login(context.Background(), LoginInput{Username: username, Password: "secret123"})
	require.NoError(t, err)

	return pair
}

// capHandler — slog.Handler, сохраняющий все записи (включая дочерние логгеры) для проверок.
type capHandler struct {
	base []slog.Attr
	sink *capSink
}

type capSink struct {
	mu      sync.Mutex
	records []capRecord
}

type capRecord struct {
	msg   string
	level slog.Level
	attrs map[string]any
}

func newCapHandler() *capHandler { return &capHandler{sink: &capSink{}} }

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, capRecord{msg: r.Message, level: r.Level, attrs: out})
	h.sink.mu.Unlock()

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := append(append([]slog.Attr{}, h.base...), attrs...)
	return &capHandler{base: base, sink: h.sink}
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func (h *capHandler) find(msg string) (capRecord, bool) {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	for _, r := range h.sink.records {
		if r.msg == msg {
			return r, true
		}
	}

	return capRecord{}, false
}

func (h *capHandler) all() []capRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	return append([]capRecord(nil), h.sink.records...)
}
