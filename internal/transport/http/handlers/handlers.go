// handlers — REST-обработчики users-service. Бизнес-логики здесь нет:
// разбор запроса, вызов сервиса, выставление cookie и единый формат ответа.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/service"
	apierrors "github.com/pribylovaa/video-share/internal/transport/http/errors"
	"github.com/pribylovaa/video-share/internal/transport/http/middleware"
)

// Service — операции users-service, доступные через HTTP.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in service.LoginInput) (*models.PublicUser, *models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	RefreshTokens(ctx context.Context, presented string) (*models.TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, in service.ChangePasswordInput) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID uuid.UUID, in service.UpdateAccountInput) (*models.PublicUser, error)
	PresignMedia(ctx context.Context, owner uuid.UUID, in service.PresignInput) (*models.UploadInfo, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, key string) (*models.PublicUser, error)
	UpdateCover(ctx context.Context, userID uuid.UUID, key string) (*models.PublicUser, error)
	ChannelProfile(ctx context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error)
	Subscribe(ctx context.Context, viewer uuid.UUID, channelUsername string) error
	Unsubscribe(ctx context.Context, viewer uuid.UUID, channelUsername string) error
	RecordWatch(ctx context.Context, userID, videoID uuid.UUID) error
	WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc     Service
	cookies config.CookieConfig
}

// New создаёт обработчики поверх сервиса.
func New(svc Service, cookies config.CookieConfig) *Handlers {
	return &Handlers{svc: svc, cookies: cookies}
}

// Response — единый формат успешного ответа.
type Response struct {
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeOK(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, Response{StatusCode: status, Data: data, Message: msg, Success: true})
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return apierrors.ErrBadRequest
	}

	return nil
}

// decodeOptional — как decodeStrict, но пустое тело не ошибка.
func decodeOptional(r *http.Request, value any) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil && !errors.Is(err, io.EOF) {
		return apierrors.ErrBadRequest
	}

	return nil
}

// identity возвращает пользователя, проверенного Auth. Без него — 401.
func identity(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return nil, false
	}

	return id, true
}
