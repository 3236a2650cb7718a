package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/video-share/internal/transport/http/errors"
)

type recordWatchRequest struct {
	VideoID string `json:"video_id"`
}

func (h *Handlers) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	profile, err := h.svc.ChannelProfile(r.Context(), chi.URLParam(r, "username"), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, profile, "user channel fetched successfully")
}

func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.Subscribe(r.Context(), id.UserID, chi.URLParam(r, "username")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, struct{}{}, "subscribed successfully")
}

func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), id.UserID, chi.URLParam(r, "username")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, struct{}{}, "unsubscribed successfully")
}

func (h *Handlers) WatchHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	videos, err := h.svc.WatchHistory(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, videos, "watch history fetched successfully")
}

func (h *Handlers) RecordWatch(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var in recordWatchRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	videoID, err := uuid.Parse(in.VideoID)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.RecordWatch(r.Context(), id.UserID, videoID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, struct{}{}, "video added to watch history")
}
