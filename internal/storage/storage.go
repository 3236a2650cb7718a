// storage задаёт контракты хранилища users-service и общие ошибки адаптеров.
// Реализации: mongo (основная), postgres и memory.
package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/видео).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email).
	ErrAlreadyExists = errors.New("already exists")
	// ErrTokenMismatch — условное обновление refresh-слота не сработало:
	// сохранённый токен отличается от ожидаемого.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// UserStorage выполняет операции над учётными записями.
type UserStorage interface {
	// SaveUser создаёт пользователя. Конфликт username/email — ErrAlreadyExists.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByUsername находит пользователя по нормализованному username.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByEmail находит пользователя по нормализованному email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePasswordHash заменяет хэш пароля.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error
	// UpdateAccount меняет full name/email/username и возвращает обновлённую запись.
	// Конфликт username/email — ErrAlreadyExists.
	UpdateAccount(ctx context.Context, id uuid.UUID, upd models.AccountUpdate, now time.Time) (*models.User, error)
	// UpdateMedia меняет URI аватара/обложки и возвращает обновлённую запись.
	UpdateMedia(ctx context.Context, id uuid.UUID, upd models.MediaUpdate, now time.Time) (*models.User, error)
	// AppendWatchHistory добавляет видео в конец истории просмотров.
	AppendWatchHistory(ctx context.Context, id, videoID uuid.UUID, now time.Time) error
}

// RefreshTokenStorage управляет единственным refresh-слотом пользователя.
type RefreshTokenStorage interface {
	// SetRefreshToken безусловно перезаписывает слот (пустая строка очищает его).
	// Отсутствие пользователя — ErrNotFound.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	// SwapRefreshToken атомарно заменяет expected на next одним условным обновлением.
	// Слот не равен expected — ErrTokenMismatch; пользователя нет — ErrNotFound.
	SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error
}

// SocialStorage хранит подписки между каналами.
type SocialStorage interface {
	// SaveSubscription идемпотентно создаёт подписку.
	SaveSubscription(ctx context.Context, sub models.Subscription) error
	// DeleteSubscription идемпотентно удаляет подписку.
	DeleteSubscription(ctx context.Context, subscriber, channel uuid.UUID) error
}

// CatalogStorage — чтение каталога видео (и запись для сидирования).
type CatalogStorage interface {
	SaveVideo(ctx context.Context, video *models.Video) error
	VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

// ReadModelStorage — производные выборки поверх нескольких коллекций.
type ReadModelStorage interface {
	// ChannelProfile собирает профиль канала по username с числом подписчиков,
	// числом подписок и признаком подписки viewer. Нет канала — ErrNotFound.
	ChannelProfile(ctx context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error)
	// WatchHistory возвращает видео из истории в порядке просмотра с владельцами.
	// Удалённые из каталога видео пропускаются.
	WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error)
}

// Storage задаёт полный контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	SocialStorage
	CatalogStorage
	ReadModelStorage
	Close(ctx context.Context) error
}
