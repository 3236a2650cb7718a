// memory — реализация storage.Storage в памяти процесса.
// Используется для локального запуска (storage.driver=memory) и в тестах сервисного слоя,
// где нужна настоящая атомарность refresh-слота без внешней БД.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/storage"
)

type subKey struct {
	subscriber uuid.UUID
	channel    uuid.UUID
}

// Storage — потокобезопасное хранилище на map под одним мьютексом.
type Storage struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*models.User
	byUsername    map[string]uuid.UUID
	byEmail       map[string]uuid.UUID
	videos        map[uuid.UUID]*models.Video
	subscriptions map[subKey]time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:         make(map[uuid.UUID]*models.User),
		byUsername:    make(map[string]uuid.UUID),
		byEmail:       make(map[string]uuid.UUID),
		videos:        make(map[uuid.UUID]*models.Video),
		subscriptions: make(map[subKey]time.Time),
	}
}

// Close ничего не освобождает.
func (s *Storage) Close(context.Context) error { return nil }

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.WatchHistory = slices.Clone(u.WatchHistory)
	return &cp
}

// SaveUser создаёт пользователя.
func (s *Storage) SaveUser(_ context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.users[user.ID] = cloneUser(user)
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID

	return nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return cloneUser(u), nil
}

// UserByUsername находит пользователя по username.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.memory.UserByUsername"

	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.UserByID(ctx, id)
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.UserByID(ctx, id)
}

// UpdatePasswordHash заменяет хэш пароля.
func (s *Storage) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string, now time.Time) error {
	const op = "storage.memory.UpdatePasswordHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.PasswordHash = hash
	u.UpdatedAt = now

	return nil
}

// UpdateAccount меняет идентификационные поля с проверкой уникальности.
func (s *Storage) UpdateAccount(_ context.Context, id uuid.UUID, upd models.AccountUpdate, now time.Time) (*models.User, error) {
	const op = "storage.memory.UpdateAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if other, ok := s.byUsername[upd.Username]; ok && other != id {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if other, ok := s.byEmail[upd.Email]; ok && other != id {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	delete(s.byUsername, u.Username)
	delete(s.byEmail, u.Email)

	u.FullName = upd.FullName
	u.Email = upd.Email
	u.Username = upd.Username
	u.UpdatedAt = now

	s.byUsername[u.Username] = id
	s.byEmail[u.Email] = id

	return cloneUser(u), nil
}

// UpdateMedia меняет URI изображений профиля.
func (s *Storage) UpdateMedia(_ context.Context, id uuid.UUID, upd models.MediaUpdate, now time.Time) (*models.User, error) {
	const op = "storage.memory.UpdateMedia"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	if upd.CoverImageURL != nil {
		u.CoverImageURL = *upd.CoverImageURL
	}
	u.UpdatedAt = now

	return cloneUser(u), nil
}

// AppendWatchHistory добавляет видео в конец истории.
func (s *Storage) AppendWatchHistory(_ context.Context, id, videoID uuid.UUID, now time.Time) error {
	const op = "storage.memory.AppendWatchHistory"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.WatchHistory = append(u.WatchHistory, videoID)
	u.UpdatedAt = now

	return nil
}

// SetRefreshToken перезаписывает refresh-слот.
func (s *Storage) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	const op = "storage.memory.SetRefreshToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.RefreshToken = token

	return nil
}

// SwapRefreshToken заменяет expected на next под эксклюзивной блокировкой.
func (s *Storage) SwapRefreshToken(_ context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.memory.SwapRefreshToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if expected == "" || u.RefreshToken != expected {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
	}

	u.RefreshToken = next

	return nil
}

// SaveSubscription идемпотентно создаёт подписку.
func (s *Storage) SaveSubscription(_ context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subKey{subscriber: sub.Subscriber, channel: sub.Channel}
	if _, ok := s.subscriptions[key]; !ok {
		s.subscriptions[key] = sub.CreatedAt
	}

	return nil
}

// DeleteSubscription идемпотентно удаляет подписку.
func (s *Storage) DeleteSubscription(_ context.Context, subscriber, channel uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, subKey{subscriber: subscriber, channel: channel})

	return nil
}

// SaveVideo добавляет или заменяет видео.
func (s *Storage) SaveVideo(_ context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *video
	cp.Owner = nil
	s.videos[video.ID] = &cp

	return nil
}

// VideoByID находит видео.
func (s *Storage) VideoByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	const op = "storage.memory.VideoByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	cp := *v
	return &cp, nil
}

// ChannelProfile считает подписчиков/подписки полным проходом по рёбрам.
func (s *Storage) ChannelProfile(_ context.Context, username string, viewer uuid.UUID) (*models.ChannelProfile, error) {
	const op = "storage.memory.ChannelProfile"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	u := s.users[id]

	out := &models.ChannelProfile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}

	for key := range s.subscriptions {
		if key.channel == id {
			out.SubscribersCount++
			if key.subscriber == viewer {
				out.IsSubscribed = true
			}
		}
		if key.subscriber == id {
			out.SubscribedToCount++
		}
	}

	return out, nil
}

// WatchHistory разворачивает историю в видео с владельцами.
func (s *Storage) WatchHistory(_ context.Context, userID uuid.UUID) ([]models.Video, error) {
	const op = "storage.memory.WatchHistory"

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	out := make([]models.Video, 0, len(u.WatchHistory))
	for _, vid := range u.WatchHistory {
		v, ok := s.videos[vid]
		if !ok {
			continue
		}

		item := *v
		if owner, ok := s.users[v.OwnerID]; ok {
			item.Owner = &models.VideoOwner{
				ID:        owner.ID,
				Username:  owner.Username,
				FullName:  owner.FullName,
				AvatarURL: owner.AvatarURL,
			}
		}
		out = append(out, item)
	}

	return out, nil
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
