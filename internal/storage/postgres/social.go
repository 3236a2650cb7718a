package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
)

// SaveSubscription создаёт подписку; повтор игнорируется через ON CONFLICT.
func (s *Storage) SaveSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.postgres.SaveSubscription"

	query := `
		INSERT INTO subscriptions(subscriber, channel, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscriber, channel) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, sub.Subscriber, sub.Channel, sub.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteSubscription удаляет подписку, если она есть.
func (s *Storage) DeleteSubscription(ctx context.Context, subscriber, channel uuid.UUID) error {
	const op = "storage.postgres.DeleteSubscription"

	if _, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE subscriber = $1 AND channel = $2`, subscriber, channel); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SaveVideo вставляет или обновляет видео.
func (s *Storage) SaveVideo(ctx context.Context, video *models.Video) error {
	const op = "storage.postgres.SaveVideo"

	query := `
		INSERT INTO videos(id, video_file, thumbnail, title, description, duration, views, is_published, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			video_file = EXCLUDED.video_file,
			thumbnail = EXCLUDED.thumbnail,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			duration = EXCLUDED.duration,
			views = EXCLUDED.views,
			is_published = EXCLUDED.is_published,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, query,
		video.ID,
		video.VideoFile,
		video.Thumbnail,
		video.Title,
		video.Description,
		video.Duration,
		video.Views,
		video.IsPublished,
		video.OwnerID,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VideoByID находит видео по ID.
func (s *Storage) VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	const op = "storage.postgres.VideoByID"

	query := `
		SELECT id, video_file, thumbnail, title, description, duration, views, is_published, owner_id, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	var v models.Video
	err := s.db.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.VideoFile,
		&v.Thumbnail,
		&v.Title,
		&v.Description,
		&v.Duration,
		&v.Views,
		&v.IsPublished,
		&v.OwnerID,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()

	return &v, nil
}
