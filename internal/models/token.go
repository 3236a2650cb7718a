package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair — пара токенов, выдаваемая при входе и ротации.
//   - AccessToken — короткоживущий JWT с идентификационными claims;
//   - RefreshToken — долгоживущий JWT (только uid), хранится на записи пользователя
//     как единственный активный;
//   - *ExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Identity — проверенные claims access-токена.
type Identity struct {
	UserID   uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
}
