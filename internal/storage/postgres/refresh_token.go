package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/storage"
)

// SetRefreshToken безусловно перезаписывает refresh-слот.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.postgres.SetRefreshToken"

	cmdTag, err := s.db.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SwapRefreshToken заменяет слот только если он равен expected.
// Возвращает:
//
//	nil              — слот был равен expected и заменён на next;
//	ErrTokenMismatch — пользователь есть, но слот другой (или expected пуст);
//	ErrNotFound      — пользователя нет.
func (s *Storage) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.postgres.SwapRefreshToken"

	if expected != "" {
		const upd = `
			UPDATE users
			SET refresh_token = $3
			WHERE id = $1 AND refresh_token = $2
		`

		cmdTag, err := s.db.Exec(ctx, upd, id, expected, next)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if cmdTag.RowsAffected() == 1 {
			return nil
		}
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
}
