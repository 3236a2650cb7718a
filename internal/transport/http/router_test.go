package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/service"
	"github.com/pribylovaa/video-share/internal/storage/memory"
	"github.com/pribylovaa/video-share/internal/transport/http/handlers"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const base = "/api/v1/users"

type testServer struct {
	srv     *httptest.Server
	store   *memory.Storage
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	svc := service.New(st, config.AuthConfig{
		AccessSecret:    "router-access",
		AccessTokenTTL:  15 * time.Minute,
		RefreshSecret:   "router-refresh",
		RefreshTokenTTL: time.Hour,
		Issuer:          "video-share",
		BcryptCost:      bcrypt.MinCost,
	})
	m := metrics.New()
	svc.SetMetrics(m)

	h := handlers.New(svc, config.CookieConfig{Secure: true})
	router := NewRouter(h, svc.Sessions(), Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  m,
		Timeout:  5 * time.Second,
		BasePath: base,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: st, metrics: m}
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Error      *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) (*http.Response, envelope) {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+base+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}

	return resp, env
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cs []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cs {
			r.AddCookie(c)
		}
	}
}

func cookieByName(cs []*http.Cookie, name string) *http.Cookie {
	for _, c := range cs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (ts *testServer) register(t *testing.T, username string) models.PublicUser {
	t.Helper()

	resp, env := ts.do(t, http.MethodPost, "/register", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "secret1",
		"full_name": "User " + username,
		"avatar":    "https://cdn.example.com/" + username + ".png",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var u models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &u))

	return u
}

type loginData struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
}

func (ts *testServer) login(t *testing.T, username string) (loginData, []*http.Cookie) {
	t.Helper()

	resp, env := ts.do(t, http.MethodPost, "/login", map[string]string{"username": username, "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out loginData
	require.NoError(t, json.Unmarshal(env.Data, &out))

	return out, resp.Cookies()
}

func TestRouter_RegisterLoginCurrentUser(t *testing.T) {
	ts := newTestServer(t)

	u := ts.register(t, "alice")
	require.Equal(t, "alice", u.Username)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "password")
	require.NotContains(t, string(raw), "refresh")

	data, cookies := ts.login(t, "alice")
	require.NotEmpty(t, data.AccessToken)

	access := cookieByName(cookies, "accessToken")
	refresh := cookieByName(cookies, "refreshToken")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, data.RefreshToken, refresh.Value)

	// cookie
	resp, env := ts.do(t, http.MethodGet, "/current-user", nil, withCookies(cookies))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &me))
	require.Equal(t, u.ID, me.ID)

	// bearer
	resp, _ = ts.do(t, http.MethodGet, "/current-user", nil, bearer(data.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	resp, env := ts.do(t, http.MethodPost, "/register", map[string]string{
		"username":  "alice",
		"email":     "other@example.com",
		"password":  "secret1",
		"full_name": "Alice",
		"avatar":    "https://cdn.example.com/a.png",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "already_exists", env.Error.Code)
	require.NotEmpty(t, env.Error.RequestID)

	resp, env = ts.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid user credentials", env.Error.Message)

	resp, _ = ts.do(t, http.MethodPost, "/login", map[string]string{"username": "ghost", "password": "secret1"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = ts.do(t, http.MethodPost, "/login", `{"username":"alice","password":"secret1","extra":1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", env.Error.Code)

	resp, _ = ts.do(t, http.MethodPost, "/register", `{"username":"`+strings.Repeat("a", 20<<10)+`"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = ts.do(t, http.MethodGet, "/current-user", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", env.Error.Code)

	resp, _ = ts.do(t, http.MethodPost, "/media/presign", map[string]any{"kind": "avatar", "content_type": "image/png", "content_length": 100})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_RefreshAndLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")
	data, cookies := ts.login(t, "alice")

	// По cookie.
	resp, env := ts.do(t, http.MethodPost, "/refresh-tokens", nil, withCookies([]*http.Cookie{cookieByName(cookies, "refreshToken")}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair models.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	require.NotEqual(t, data.RefreshToken, pair.RefreshToken)

	// Старый токен в теле уже использован.
	resp, env = ts.do(t, http.MethodPost, "/refresh-tokens", map[string]string{"refresh_token": data.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "refresh token is expired or used", env.Error.Message)

	// Новый по телу.
	resp, env = ts.do(t, http.MethodPost, "/refresh-tokens", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &pair))

	resp, _ = ts.do(t, http.MethodPost, "/logout", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := cookieByName(resp.Cookies(), "refreshToken")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	resp, _ = ts.do(t, http.MethodPost, "/refresh-tokens", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/refresh-tokens", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_AccountChannelHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	ts.register(t, "bob")
	data, _ := ts.login(t, "bob")
	auth := bearer(data.AccessToken)

	resp, _ := ts.do(t, http.MethodPost, "/channel/alice/subscription", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := ts.do(t, http.MethodGet, "/channel/alice", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.ChannelProfile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, int64(1), p.SubscribersCount)
	require.True(t, p.IsSubscribed)

	resp, _ = ts.do(t, http.MethodPost, "/channel/bob/subscription", nil, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/channel/alice/subscription", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/channel/nobody", nil, auth)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	video := &models.Video{ID: uuid.New(), Title: "intro", OwnerID: alice.ID, IsPublished: true}
	require.NoError(t, ts.store.SaveVideo(t.Context(), video))

	resp, _ = ts.do(t, http.MethodPost, "/watch-history", map[string]string{"video_id": video.ID.String()}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/watch-history", map[string]string{"video_id": "not-a-uuid"}, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = ts.do(t, http.MethodGet, "/watch-history", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.Video
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	require.Equal(t, "alice", history[0].Owner.Username)

	resp, env = ts.do(t, http.MethodPatch, "/update-account", map[string]string{
		"full_name": "Bob B.",
		"email":     "bob2@example.com",
		"username":  "bobby",
	}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var upd models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &upd))
	require.Equal(t, "bobby", upd.Username)

	resp, env = ts.do(t, http.MethodPatch, "/cover-image", map[string]string{"key": "https://cdn.example.com/cover.png"}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &upd))
	require.Equal(t, "https://cdn.example.com/cover.png", upd.CoverImageURL)

	resp, _ = ts.do(t, http.MethodPatch, "/avatar", map[string]string{"key": ""}, auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/change-password", map[string]string{
		"old_password":     "secret1",
		"new_password":     "secret2",
		"confirm_password": "secret2",
	}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/login", map[string]string{"username": "bobby", "password": "secret2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_MetricsByRoute(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")
	data, _ := ts.login(t, "alice")

	resp, _ := ts.do(t, http.MethodGet, "/channel/alice", nil, bearer(data.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := httptest.NewRecorder()
	ts.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, `route="/api/v1/users/channel/{username}",status="200"`)
	require.Contains(t, body, `videoshare_auth_operations_total{op="login",result="ok"} 1`)
}
