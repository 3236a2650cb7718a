package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	apierrors "github.com/pribylovaa/video-share/internal/transport/http/errors"
)

// AccessCookie — имя cookie с access-токеном.
const AccessCookie = "accessToken"

// TokenVerifier проверяет access-токен и возвращает идентичность пользователя.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (*models.Identity, error)
}

type identityKey struct{}

// Auth требует действующий access-токен (cookie accessToken или Authorization: Bearer).
// Любая проблема с токеном — 401 без вызова обработчика.
func Auth(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.VerifyAccessToken(r.Context(), AccessToken(r))
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth кладёт идентичность в контекст, если токен предъявлен и действителен.
// Отсутствующий или недействительный токен не ошибка.
func OptionalAuth(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := AccessToken(r); raw != "" {
				if id, err := v.VerifyAccessToken(r.Context(), raw); err == nil {
					r = r.WithContext(withIdentity(r.Context(), id))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AccessToken достаёт токен из cookie, а при её отсутствии — из Bearer-заголовка.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}

	return ""
}

func withIdentity(ctx context.Context, id *models.Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	return log.With(ctx, slog.String("user_id", id.UserID.String()))
}

// IdentityFrom возвращает идентичность, положенную Auth/OptionalAuth.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.Identity)
	return id, ok && id != nil
}
