package handlers

import (
	"net/http"
	"strings"

	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/service"
	apierrors "github.com/pribylovaa/video-share/internal/transport/http/errors"
)

// loginResponse — пользователь и пара токенов (токены дублируются в cookie).
type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, user, "user registered successfully")
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, pair, err := h.svc.Login(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	writeOK(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "user logged in successfully")
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.Logout(r.Context(), id.UserID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearTokenCookies(w)
	writeOK(w, http.StatusOK, struct{}{}, "user logged out")
}

// RefreshTokens принимает refresh-токен из cookie, а при её отсутствии — из тела.
func (h *Handlers) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var presented string
	if c, err := r.Cookie(RefreshCookie); err == nil {
		presented = c.Value
	}

	if strings.TrimSpace(presented) == "" {
		var in refreshRequest
		if err := decodeOptional(r, &in); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
		presented = in.RefreshToken
	}

	pair, err := h.svc.RefreshTokens(r.Context(), presented)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	writeOK(w, http.StatusOK, pair, "access token refreshed")
}
