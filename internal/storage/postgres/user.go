package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
)

const userColumns = `id, username, email, password_hash, full_name, avatar, cover_image, refresh_token, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()

	return &user, nil
}

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.AvatarURL,
		user.CoverImageURL,
		user.RefreshToken,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// userBy выбирает пользователя по одному столбцу и догружает историю просмотров.
func (s *Storage) userBy(ctx context.Context, op, column string, value any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	history, err := s.historyIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.WatchHistory = history

	return user, nil
}

func (s *Storage) historyIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT video_id FROM watch_history WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return ids, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userBy(ctx, "storage.postgres.UserByID", "id", id)
}

// UserByUsername находит пользователя по username.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userBy(ctx, "storage.postgres.UserByUsername", "username", username)
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userBy(ctx, "storage.postgres.UserByEmail", "email", email)
}

// UpdatePasswordHash заменяет хэш пароля.
func (s *Storage) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	const op = "storage.postgres.UpdatePasswordHash"

	cmdTag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) updateReturning(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	history, err := s.historyIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.WatchHistory = history

	return user, nil
}

// UpdateAccount меняет full_name/email/username и возвращает обновлённую запись.
func (s *Storage) UpdateAccount(ctx context.Context, id uuid.UUID, upd models.AccountUpdate, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET full_name = $2, email = $3, username = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	return s.updateReturning(ctx, "storage.postgres.UpdateAccount", query, id, upd.FullName, upd.Email, upd.Username, now)
}

// UpdateMedia меняет только переданные URI (NULL-параметр оставляет столбец как есть).
func (s *Storage) UpdateMedia(ctx context.Context, id uuid.UUID, upd models.MediaUpdate, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET avatar = COALESCE($2, avatar), cover_image = COALESCE($3, cover_image), updated_at = $4
		WHERE id = $1
		RETURNING ` + userColumns

	return s.updateReturning(ctx, "storage.postgres.UpdateMedia", query, id, upd.AvatarURL, upd.CoverImageURL, now)
}

// AppendWatchHistory добавляет запись истории и обновляет updated_at в одной транзакции.
func (s *Storage) AppendWatchHistory(ctx context.Context, id, videoID uuid.UUID, now time.Time) error {
	const op = "storage.postgres.AppendWatchHistory"

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `UPDATE users SET updated_at = $2 WHERE id = $1`, id, now)
		if err != nil {
			return err
		}

		if cmdTag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}

		_, err = tx.Exec(ctx, `INSERT INTO watch_history(user_id, video_id, watched_at) VALUES ($1, $2, $3)`, id, videoID, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
