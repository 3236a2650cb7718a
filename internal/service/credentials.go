package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/pkg/redact"
	"github.com/pribylovaa/video-share/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// NewUser — нормализованные идентификационные поля новой учётной записи.
type NewUser struct {
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
}

// Credentials — хранилище учётных данных: записи пользователей, bcrypt-хэши паролей
// и единственный refresh-слот. Пароль хэшируется только здесь и ровно один раз
// на каждое логическое изменение.
type Credentials struct {
	storage storage.Storage
	cost    int
	now     func() time.Time
}

// NewCredentials создаёт хранилище учётных данных с заданной стоимостью bcrypt.
func NewCredentials(st storage.Storage, cost int, now func() time.Time) *Credentials {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Credentials{storage: st, cost: cost, now: now}
}

// Create проверяет уникальность username/email, хэширует пароль и сохраняет запись.
// Занятый username или email — ErrDuplicateIdentity (в том числе при гонке на вставке).
func (c *Credentials) Create(ctx context.Context, nu NewUser, password string) (*models.User, error) {
	const op = "service.credentials.Create"

	if err := c.ensureFree(ctx, op, nu.Username, nu.Email); err != nil {
		return nil, err
	}

	hash, err := c.hash(password)
	if err != nil {
		return nil, internalError(ctx, op, "password_hash_failed", err)
	}

	now := c.now()
	user := &models.User{
		ID:            uuid.New(),
		Username:      nu.Username,
		Email:         nu.Email,
		PasswordHash:  hash,
		FullName:      nu.FullName,
		AvatarURL:     nu.AvatarURL,
		CoverImageURL: nu.CoverImageURL,
		WatchHistory:  []uuid.UUID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrDuplicateIdentity, ErrDuplicateIdentity.Error()))
		}

		return nil, internalError(ctx, op, "save_user_failed", err)
	}

	log.From(ctx).Info("user_created",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return user, nil
}

// ensureFree выполняет проверку уникальности до любых мутаций.
func (c *Credentials) ensureFree(ctx context.Context, op, username, email string) error {
	if _, err := c.storage.UserByUsername(ctx, username); err == nil {
		return fmt.Errorf("%s: %w", op, newError(ErrDuplicateIdentity, ErrDuplicateIdentity.Error()))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return internalError(ctx, op, "user_lookup_failed", err)
	}

	if _, err := c.storage.UserByEmail(ctx, email); err == nil {
		return fmt.Errorf("%s: %w", op, newError(ErrDuplicateIdentity, ErrDuplicateIdentity.Error()))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return internalError(ctx, op, "user_lookup_failed", err)
	}

	return nil
}

// VerifyPassword сравнивает кандидата с хэшем записи (bcrypt, постоянное время).
func (c *Credentials) VerifyPassword(user *models.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

// SetPassword хэширует новый пароль и сохраняет его. Запись в памяти тоже обновляется.
func (c *Credentials) SetPassword(ctx context.Context, user *models.User, newPlain string) error {
	const op = "service.credentials.SetPassword"

	hash, err := c.hash(newPlain)
	if err != nil {
		return internalError(ctx, op, "password_hash_failed", err)
	}

	now := c.now()
	if err := c.storage.UpdatePasswordHash(ctx, user.ID, hash, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user not found"))
		}

		return internalError(ctx, op, "update_password_failed", err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = now

	return nil
}

// SetRefreshToken безусловно перезаписывает refresh-слот ("" очищает).
// Ошибки хранилища возвращаются как есть: их трактовку выбирает вызывающий.
func (c *Credentials) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	const op = "service.credentials.SetRefreshToken"

	if err := c.storage.SetRefreshToken(ctx, userID, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SwapRefreshToken атомарно заменяет expected на next.
// storage.ErrTokenMismatch/storage.ErrNotFound пробрасываются для трактовки вызывающим.
func (c *Credentials) SwapRefreshToken(ctx context.Context, userID uuid.UUID, expected, next string) error {
	const op = "service.credentials.SwapRefreshToken"

	if err := c.storage.SwapRefreshToken(ctx, userID, expected, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Credentials) hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
