package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelProfile — read-model канала: профиль владельца и производные счётчики подписок.
// IsSubscribed вычисляется относительно смотрящего пользователя.
type ChannelProfile struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FullName          string    `json:"full_name"`
	AvatarURL         string    `json:"avatar"`
	CoverImageURL     string    `json:"cover_image"`
	SubscribersCount  int64     `json:"subscribers_count"`
	SubscribedToCount int64     `json:"subscribed_to_count"`
	IsSubscribed      bool      `json:"is_subscribed"`
}

// Subscription — ребро социального графа: Subscriber подписан на канал Channel.
type Subscription struct {
	Subscriber uuid.UUID
	Channel    uuid.UUID
	CreatedAt  time.Time
}

// Video — опубликованное видео (каталог ведётся вне этого сервиса, здесь только чтение/сид).
type Video struct {
	ID          uuid.UUID   `json:"id"`
	VideoFile   string      `json:"video_file"`
	Thumbnail   string      `json:"thumbnail"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Views       int64       `json:"views"`
	IsPublished bool        `json:"is_published"`
	OwnerID     uuid.UUID   `json:"-"`
	Owner       *VideoOwner `json:"owner,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// VideoOwner — проекция владельца видео для истории просмотров.
type VideoOwner struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar"`
}
