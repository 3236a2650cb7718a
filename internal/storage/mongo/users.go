package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDoc — документ коллекции users. UUID хранятся строками.
type userDoc struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	PasswordHash  string    `bson:"password_hash"`
	FullName      string    `bson:"full_name"`
	AvatarURL     string    `bson:"avatar"`
	CoverImageURL string    `bson:"cover_image"`
	WatchHistory  []string  `bson:"watch_history"`
	RefreshToken  string    `bson:"refresh_token"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func toUserDoc(u *models.User) userDoc {
	history := make([]string, 0, len(u.WatchHistory))
	for _, id := range u.WatchHistory {
		history = append(history, id.String())
	}

	return userDoc{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		WatchHistory:  history,
		RefreshToken:  u.RefreshToken,
		CreatedAt:     toMS(u.CreatedAt),
		UpdatedAt:     toMS(u.UpdatedAt),
	}
}

func (d userDoc) model() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", d.ID, err)
	}

	history := make([]uuid.UUID, 0, len(d.WatchHistory))
	for _, raw := range d.WatchHistory {
		vid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("bad video id %q: %w", raw, err)
		}
		history = append(history, vid)
	}

	return &models.User{
		ID:            id,
		Username:      d.Username,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		FullName:      d.FullName,
		AvatarURL:     d.AvatarURL,
		CoverImageURL: d.CoverImageURL,
		WatchHistory:  history,
		RefreshToken:  d.RefreshToken,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

// SaveUser вставляет документ пользователя.
// Нарушение уникальных индексов username/email — storage.ErrAlreadyExists.
func (m *Mongo) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.SaveUser"

	if _, err := m.users.InsertOne(ctx, toUserDoc(user)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

func (m *Mongo) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UserByID возвращает пользователя по идентификатору.
func (m *Mongo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.findUser(ctx, "storage.mongo.UserByID", bson.D{{Key: "_id", Value: id.String()}})
}

// UserByUsername возвращает пользователя по username.
func (m *Mongo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(ctx, "storage.mongo.UserByUsername", bson.D{{Key: "username", Value: username}})
}

// UserByEmail возвращает пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, "storage.mongo.UserByEmail", bson.D{{Key: "email", Value: email}})
}

// UpdatePasswordHash заменяет хэш пароля.
func (m *Mongo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	const op = "storage.mongo.UpdatePasswordHash"

	res, err := m.users.UpdateByID(ctx, id.String(), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: hash},
			{Key: "updated_at", Value: toMS(now)},
		}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (m *Mongo) updateAndReturn(ctx context.Context, op string, id uuid.UUID, set bson.D) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := m.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id.String()}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongodriver.ErrNoDocuments):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case mongodriver.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	u, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateAccount меняет full_name/email/username одним FindOneAndUpdate.
func (m *Mongo) UpdateAccount(ctx context.Context, id uuid.UUID, upd models.AccountUpdate, now time.Time) (*models.User, error) {
	return m.updateAndReturn(ctx, "storage.mongo.UpdateAccount", id, bson.D{
		{Key: "full_name", Value: upd.FullName},
		{Key: "email", Value: upd.Email},
		{Key: "username", Value: upd.Username},
		{Key: "updated_at", Value: toMS(now)},
	})
}

// UpdateMedia меняет только переданные URI изображений.
func (m *Mongo) UpdateMedia(ctx context.Context, id uuid.UUID, upd models.MediaUpdate, now time.Time) (*models.User, error) {
	set := bson.D{{Key: "updated_at", Value: toMS(now)}}
	if upd.AvatarURL != nil {
		set = append(set, bson.E{Key: "avatar", Value: *upd.AvatarURL})
	}
	if upd.CoverImageURL != nil {
		set = append(set, bson.E{Key: "cover_image", Value: *upd.CoverImageURL})
	}

	return m.updateAndReturn(ctx, "storage.mongo.UpdateMedia", id, set)
}

// AppendWatchHistory добавляет видео в конец watch_history через $push.
func (m *Mongo) AppendWatchHistory(ctx context.Context, id, videoID uuid.UUID, now time.Time) error {
	const op = "storage.mongo.AppendWatchHistory"

	res, err := m.users.UpdateByID(ctx, id.String(), bson.D{
		{Key: "$push", Value: bson.D{{Key: "watch_history", Value: videoID.String()}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(now)}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
