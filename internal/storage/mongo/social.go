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

// videoDoc — документ коллекции videos.
type videoDoc struct {
	ID          string    `bson:"_id"`
	VideoFile   string    `bson:"video_file"`
	Thumbnail   string    `bson:"thumbnail"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Duration    float64   `bson:"duration"`
	Views       int64     `bson:"views"`
	IsPublished bool      `bson:"is_published"`
	Owner       string    `bson:"owner"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d videoDoc) model() (*models.Video, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad video id %q: %w", d.ID, err)
	}

	owner, err := uuid.Parse(d.Owner)
	if err != nil {
		return nil, fmt.Errorf("bad owner id %q: %w", d.Owner, err)
	}

	return &models.Video{
		ID:          id,
		VideoFile:   d.VideoFile,
		Thumbnail:   d.Thumbnail,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		Views:       d.Views,
		IsPublished: d.IsPublished,
		OwnerID:     owner,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

// SaveSubscription создаёт ребро (subscriber, channel) через upsert с $setOnInsert,
// повторный вызов ничего не меняет.
func (m *Mongo) SaveSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.mongo.SaveSubscription"

	filter := bson.D{
		{Key: "subscriber", Value: sub.Subscriber.String()},
		{Key: "channel", Value: sub.Channel.String()},
	}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: toMS(sub.CreatedAt)}}}}

	_, err := m.subscriptions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// Гонка двух upsert: проигравший получает duplicate key, но ребро уже есть.
		if mongodriver.IsDuplicateKeyError(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteSubscription удаляет ребро, отсутствие ребра не ошибка.
func (m *Mongo) DeleteSubscription(ctx context.Context, subscriber, channel uuid.UUID) error {
	const op = "storage.mongo.DeleteSubscription"

	_, err := m.subscriptions.DeleteOne(ctx, bson.D{
		{Key: "subscriber", Value: subscriber.String()},
		{Key: "channel", Value: channel.String()},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SaveVideo вставляет или заменяет документ видео.
func (m *Mongo) SaveVideo(ctx context.Context, video *models.Video) error {
	const op = "storage.mongo.SaveVideo"

	doc := videoDoc{
		ID:          video.ID.String(),
		VideoFile:   video.VideoFile,
		Thumbnail:   video.Thumbnail,
		Title:       video.Title,
		Description: video.Description,
		Duration:    video.Duration,
		Views:       video.Views,
		IsPublished: video.IsPublished,
		Owner:       video.OwnerID.String(),
		CreatedAt:   toMS(video.CreatedAt),
		UpdatedAt:   toMS(video.UpdatedAt),
	}

	_, err := m.videos.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VideoByID возвращает видео по идентификатору.
func (m *Mongo) VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	const op = "storage.mongo.VideoByID"

	var doc videoDoc
	if err := m.videos.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}
