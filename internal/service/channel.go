package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
)

// ChannelProfile возвращает профиль канала с числом подписчиков и подписок.
// IsSubscribed считается относительно viewer.
func (s *Service) ChannelProfile(ctx context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error) {
	const op = "service.channel.ChannelProfile"

	username = normalizeIdentity(username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrValidation, "username is missing"))
	}

	profile, err := s.storage.ChannelProfile(ctx, username, viewer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "channel does not exist"))
		}

		return nil, internalError(ctx, op, "channel_profile_failed", err)
	}

	return profile, nil
}

// Subscribe подписывает viewer на канал. Повторная подписка не ошибка.
func (s *Service) Subscribe(ctx context.Context, viewer uuid.UUID, channelUsername string) error {
	const op = "service.channel.Subscribe"

	channel, err := s.channelFor(ctx, op, viewer, channelUsername)
	if err != nil {
		return err
	}

	if err := s.storage.SaveSubscription(ctx, models.Subscription{
		Subscriber: viewer,
		Channel:    channel.ID,
		CreatedAt:  s.now(),
	}); err != nil {
		return internalError(ctx, op, "save_subscription_failed", err)
	}

	return nil
}

// Unsubscribe отменяет подписку. Отсутствующая подписка не ошибка.
func (s *Service) Unsubscribe(ctx context.Context, viewer uuid.UUID, channelUsername string) error {
	const op = "service.channel.Unsubscribe"

	channel, err := s.channelFor(ctx, op, viewer, channelUsername)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteSubscription(ctx, viewer, channel.ID); err != nil {
		return internalError(ctx, op, "delete_subscription_failed", err)
	}

	return nil
}

// channelFor находит канал и запрещает операции над собственным каналом.
func (s *Service) channelFor(ctx context.Context, op string, viewer uuid.UUID, username string) (*models.User, error) {
	username = normalizeIdentity(username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrValidation, "username is missing"))
	}

	channel, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "channel does not exist"))
		}

		return nil, internalError(ctx, op, "channel_lookup_failed", err)
	}

	if channel.ID == viewer {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrValidation, "cannot subscribe to your own channel"))
	}

	return channel, nil
}

// RecordWatch добавляет видео в конец истории просмотров. Видео должно существовать.
func (s *Service) RecordWatch(ctx context.Context, userID, videoID uuid.UUID) error {
	const op = "service.channel.RecordWatch"

	if videoID == uuid.Nil {
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, "video id is missing"))
	}

	if _, err := s.storage.VideoByID(ctx, videoID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, newError(ErrNotFound, "video does not exist"))
		}

		return internalError(ctx, op, "video_lookup_failed", err)
	}

	if err := s.storage.AppendWatchHistory(ctx, userID, videoID, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		return internalError(ctx, op, "append_watch_history_failed", err)
	}

	return nil
}

// WatchHistory возвращает историю просмотров в порядке просмотра.
func (s *Service) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error) {
	const op = "service.channel.WatchHistory"

	videos, err := s.storage.WatchHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		return nil, internalError(ctx, op, "watch_history_failed", err)
	}

	if videos == nil {
		videos = []models.Video{}
	}

	return videos, nil
}
