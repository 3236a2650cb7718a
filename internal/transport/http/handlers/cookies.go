package handlers

import (
	"net/http"
	"time"

	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/transport/http/middleware"
)

// RefreshCookie — имя cookie с refresh-токеном.
const RefreshCookie = "refreshToken"

func (h *Handlers) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handlers) setTokenCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.cookie(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *Handlers) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
