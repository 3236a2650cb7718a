// models содержит доменные сущности users-service.
// Эти типы используются слоями бизнес-логики, хранилища и транспорта.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
// Важно:
//   - Username/Email хранятся в нижнем регистре без пробелов по краям и уникальны;
//   - PasswordHash — bcrypt-хэш, открытый пароль нигде не сохраняется;
//   - WatchHistory — порядок вставки равен порядку просмотра, дубликаты допустимы;
//   - RefreshToken — единственный активный refresh-токен, пустая строка = нет сессии.
type User struct {
	ID            uuid.UUID
	Username      string
	Email         string
	PasswordHash  string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	WatchHistory  []uuid.UUID
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser — представление пользователя без пароля и refresh-токена.
type PublicUser struct {
	ID            uuid.UUID   `json:"id"`
	Username      string      `json:"username"`
	Email         string      `json:"email"`
	FullName      string      `json:"full_name"`
	AvatarURL     string      `json:"avatar"`
	CoverImageURL string      `json:"cover_image"`
	WatchHistory  []uuid.UUID `json:"watch_history"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Public отбрасывает секретные поля.
func (u *User) Public() *PublicUser {
	history := u.WatchHistory
	if history == nil {
		history = []uuid.UUID{}
	}

	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		WatchHistory:  history,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// AccountUpdate — новые значения идентификационных полей (уже нормализованные).
type AccountUpdate struct {
	FullName string
	Email    string
	Username string
}

// MediaUpdate — новые URI аватара и/или обложки; nil означает «не менять».
type MediaUpdate struct {
	AvatarURL     *string
	CoverImageURL *string
}
