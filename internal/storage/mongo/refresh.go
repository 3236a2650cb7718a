package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
)

// SetRefreshToken безусловно перезаписывает refresh_token.
func (m *Mongo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.mongo.SetRefreshToken"

	res, err := m.users.UpdateByID(ctx, id.String(), bson.D{
		{Key: "$set", Value: bson.D{{Key: "refresh_token", Value: token}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SwapRefreshToken — условное обновление: фильтр включает ожидаемое значение слота,
// поэтому из двух конкурентных вызовов с одним expected документ изменит только один.
// MatchedCount == 0 разбирается дополнительным запросом: нет документа — ErrNotFound,
// иначе слот уже другой — ErrTokenMismatch.
func (m *Mongo) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.mongo.SwapRefreshToken"

	if expected != "" {
		res, err := m.users.UpdateOne(ctx,
			bson.D{
				{Key: "_id", Value: id.String()},
				{Key: "refresh_token", Value: expected},
			},
			bson.D{{Key: "$set", Value: bson.D{{Key: "refresh_token", Value: next}}}},
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if res.MatchedCount == 1 {
			return nil
		}
	}

	n, err := m.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: count: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
}
