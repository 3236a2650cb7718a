package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

type channelDoc struct {
	ID                string `bson:"_id"`
	Username          string `bson:"username"`
	Email             string `bson:"email"`
	FullName          string `bson:"full_name"`
	AvatarURL         string `bson:"avatar"`
	CoverImageURL     string `bson:"cover_image"`
	SubscribersCount  int64  `bson:"subscribers_count"`
	SubscribedToCount int64  `bson:"subscribed_to_count"`
	IsSubscribed      bool   `bson:"is_subscribed"`
}

type ownerDoc struct {
	ID        string `bson:"_id"`
	Username  string `bson:"username"`
	FullName  string `bson:"full_name"`
	AvatarURL string `bson:"avatar"`
}

type historyDoc struct {
	videoDoc `bson:",inline"`
	OwnerDoc []ownerDoc `bson:"owner_doc"`
}

// ChannelProfile собирает профиль канала одним aggregate:
// $match по username, два $lookup в subscriptions и $size/$in для счётчиков и признака подписки.
func (m *Mongo) ChannelProfile(ctx context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error) {
	const op = "storage.mongo.ChannelProfile"

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "username", Value: username}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribed_to"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribers_count", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
			{Key: "subscribed_to_count", Value: bson.D{{Key: "$size", Value: "$subscribed_to"}}},
			{Key: "is_subscribed", Value: bson.D{{Key: "$in", Value: bson.A{viewer.String(), "$subscribers.subscriber"}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "username", Value: 1},
			{Key: "email", Value: 1},
			{Key: "full_name", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "cover_image", Value: 1},
			{Key: "subscribers_count", Value: 1},
			{Key: "subscribed_to_count", Value: 1},
			{Key: "is_subscribed", Value: 1},
		}}},
	}

	cur, err := m.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("%s: cursor: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc channelDoc
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: bad channel id %q: %w", op, doc.ID, err)
	}

	return &models.ChannelProfile{
		ID:                id,
		Username:          doc.Username,
		Email:             doc.Email,
		FullName:          doc.FullName,
		AvatarURL:         doc.AvatarURL,
		CoverImageURL:     doc.CoverImageURL,
		SubscribersCount:  doc.SubscribersCount,
		SubscribedToCount: doc.SubscribedToCount,
		IsSubscribed:      doc.IsSubscribed,
	}, nil
}

// WatchHistory читает watch_history пользователя, подтягивает видео с владельцем
// через $lookup и раскладывает их в порядке просмотра (с повторами).
func (m *Mongo) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error) {
	const op = "storage.mongo.WatchHistory"

	var user userDoc
	err := m.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID.String()}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(user.WatchHistory) == 0 {
		return []models.Video{}, nil
	}

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: user.WatchHistory}}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "owner"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner_doc"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "owner_doc.password_hash", Value: 0},
			{Key: "owner_doc.refresh_token", Value: 0},
			{Key: "owner_doc.watch_history", Value: 0},
			{Key: "owner_doc.email", Value: 0},
		}}},
	}

	cur, err := m.videos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	byID := make(map[string]models.Video)
	for cur.Next(ctx) {
		var doc historyDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		v, err := doc.videoDoc.model()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if len(doc.OwnerDoc) > 0 {
			o := doc.OwnerDoc[0]
			v.Owner = &models.VideoOwner{
				ID:        v.OwnerID,
				Username:  o.Username,
				FullName:  o.FullName,
				AvatarURL: o.AvatarURL,
			}
		}

		byID[doc.ID] = *v
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	out := make([]models.Video, 0, len(user.WatchHistory))
	for _, raw := range user.WatchHistory {
		if v, ok := byID[raw]; ok {
			out = append(out, v)
		}
	}

	return out, nil
}
