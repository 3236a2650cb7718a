package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/media"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/storage"
)

// PresignMedia выдаёт presigned PUT для изображения профиля.
// owner равен uuid.Nil для загрузок до регистрации.
func (s *Service) PresignMedia(ctx context.Context, owner uuid.UUID, in PresignInput) (*models.UploadInfo, error) {
	const op = "service.profile.PresignMedia"

	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.ContentType = strings.TrimSpace(in.ContentType)

	if err := s.validateStruct(op, in); err != nil {
		return nil, err
	}

	info, err := s.media.UploadURL(ctx, models.MediaKind(in.Kind), owner, in.ContentType, in.ContentLength)
	if err != nil {
		return nil, s.mediaError(ctx, op, err)
	}

	return info, nil
}

// UpdateAvatar подтверждает загруженный аватар и записывает его URI в профиль.
func (s *Service) UpdateAvatar(ctx context.Context, userID uuid.UUID, key string) (*models.PublicUser, error) {
	const op = "service.profile.UpdateAvatar"

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrValidation, "avatar file is missing"))
	}

	uri, err := s.resolveMedia(ctx, op, models.MediaAvatar, userID, key)
	if err != nil {
		return nil, err
	}

	return s.updateMedia(ctx, op, userID, models.MediaUpdate{AvatarURL: &uri})
}

// UpdateCover подтверждает загруженную обложку и записывает её URI в профиль.
func (s *Service) UpdateCover(ctx context.Context, userID uuid.UUID, key string) (*models.PublicUser, error) {
	const op = "service.profile.UpdateCover"

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrValidation, "cover image file is missing"))
	}

	uri, err := s.resolveMedia(ctx, op, models.MediaCover, userID, key)
	if err != nil {
		return nil, err
	}

	return s.updateMedia(ctx, op, userID, models.MediaUpdate{CoverImageURL: &uri})
}

func (s *Service) updateMedia(ctx context.Context, op string, userID uuid.UUID, upd models.MediaUpdate) (*models.PublicUser, error) {
	user, err := s.storage.UpdateMedia(ctx, userID, upd, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		return nil, internalError(ctx, op, "update_media_failed", err)
	}

	log.From(ctx).Info("profile_media_updated",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	return user.Public(), nil
}

// resolveMedia превращает ключ загрузки в URI, маппя ошибки media на виды сервиса.
func (s *Service) resolveMedia(ctx context.Context, op string, kind models.MediaKind, owner uuid.UUID, key string) (string, error) {
	uri, err := s.media.Resolve(ctx, kind, owner, key)
	if err != nil {
		return "", s.mediaError(ctx, op, err)
	}

	return uri, nil
}

func (s *Service) mediaError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, media.ErrInvalidArgument):
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, "invalid media upload"))
	case errors.Is(err, media.ErrNotFound):
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, "uploaded file not found"))
	case errors.Is(err, media.ErrUnavailable):
		return fmt.Errorf("%s: %w", op, newError(ErrMediaUnavailable, ErrMediaUnavailable.Error()))
	default:
		return internalError(ctx, op, "media_storage_failed", err)
	}
}
