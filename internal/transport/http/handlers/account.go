package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/service"
	apierrors "github.com/pribylovaa/video-share/internal/transport/http/errors"
	"github.com/pribylovaa/video-share/internal/transport/http/middleware"
)

type mediaKeyRequest struct {
	Key string `json:"key"`
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var in service.ChangePasswordInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), id.UserID, in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "current user fetched successfully")
}

func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var in service.UpdateAccountInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.UpdateAccount(r.Context(), id.UserID, in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "account details updated successfully")
}

// PresignMedia доступен без входа (аватар нужен уже при регистрации);
// для вошедшего пользователя ключ привязывается к его id.
func (h *Handlers) PresignMedia(w http.ResponseWriter, r *http.Request) {
	var in service.PresignInput
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	owner := uuid.Nil
	if id, ok := middleware.IdentityFrom(r.Context()); ok {
		owner = id.UserID
	}

	info, err := h.svc.PresignMedia(r.Context(), owner, in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, info, "upload url issued")
}

func (h *Handlers) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var in mediaKeyRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.UpdateAvatar(r.Context(), id.UserID, in.Key)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "avatar image updated successfully")
}

func (h *Handlers) UpdateCover(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var in mediaKeyRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.UpdateCover(r.Context(), id.UserID, in.Key)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "cover image updated successfully")
}
