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

// ChannelProfile собирает профиль канала с подзапросами-счётчиками.
func (s *Storage) ChannelProfile(ctx context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error) {
	const op = "storage.postgres.ChannelProfile"

	query := `
		SELECT u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image,
			(SELECT COUNT(*) FROM subscriptions WHERE channel = u.id),
			(SELECT COUNT(*) FROM subscriptions WHERE subscriber = u.id),
			EXISTS(SELECT 1 FROM subscriptions WHERE channel = u.id AND subscriber = $2)
		FROM users u
		WHERE u.username = $1
	`

	var p models.ChannelProfile
	err := s.db.QueryRow(ctx, query, username, viewer).Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.FullName,
		&p.AvatarURL,
		&p.CoverImageURL,
		&p.SubscribersCount,
		&p.SubscribedToCount,
		&p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

// WatchHistory разворачивает историю просмотров в видео с владельцами в порядке seq.
// INNER JOIN отбрасывает видео, которых уже нет в каталоге.
func (s *Storage) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error) {
	const op = "storage.postgres.WatchHistory"

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	query := `
		SELECT v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration, v.views,
			v.is_published, v.owner_id, v.created_at, v.updated_at,
			o.username, o.full_name, o.avatar
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE h.user_id = $1
		ORDER BY h.seq
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Video, 0)
	for rows.Next() {
		var (
			v     models.Video
			owner models.VideoOwner
		)

		err := rows.Scan(
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
			&owner.Username,
			&owner.FullName,
			&owner.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		owner.ID = v.OwnerID
		v.Owner = &owner
		v.CreatedAt = v.CreatedAt.UTC()
		v.UpdatedAt = v.UpdatedAt.UTC()
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return out, nil
}
