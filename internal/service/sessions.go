package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/storage"
)

type accessClaims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"userName"`
	FullName string `json:"fullname"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// Sessions выпускает, проверяет, ротирует и отзывает токены.
// Состояния пользователя: ANONYMOUS → AUTHENTICATED → [REFRESHED]* → LOGGED_OUT.
// Access и refresh подписываются HS256 разными секретами, у каждого токена свой jti.
type Sessions struct {
	creds   *Credentials
	storage storage.UserStorage
	cfg     config.AuthConfig
	now     func() time.Time
}

// NewSessions создаёт менеджер токенов поверх хранилища учётных данных.
func NewSessions(creds *Credentials, st storage.UserStorage, cfg config.AuthConfig, now func() time.Time) *Sessions {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Sessions{creds: creds, storage: st, cfg: cfg, now: now}
}

// IssueTokens загружает пользователя и выпускает ему новую пару токенов.
func (s *Sessions) IssueTokens(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error) {
	const op = "service.sessions.IssueTokens"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		return nil, internalError(ctx, op, "user_lookup_failed", err)
	}

	return s.issue(ctx, user)
}

// issue подписывает пару и делает refresh единственным активным в слоте.
// Сбой записи слота — ErrInternal.
func (s *Sessions) issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.sessions.issue"

	pair, err := s.sign(user)
	if err != nil {
		return nil, internalError(ctx, op, "token_sign_failed", err)
	}

	if err := s.creds.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, internalError(ctx, op, "refresh_slot_write_failed", err)
	}

	user.RefreshToken = pair.RefreshToken

	return pair, nil
}

// sign подписывает access (идентификационные claims) и refresh (только _id).
func (s *Sessions) sign(user *models.User) (*models.TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.cfg.AccessTokenTTL)
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: s.registered(user.ID, now, accessExp),
	})

	accessStr, err := access.SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return nil, fmt.Errorf("sign access: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		UserID:           user.ID.String(),
		RegisteredClaims: s.registered(user.ID, now, refreshExp),
	})

	refreshStr, err := refresh.SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh: %w", err)
	}

	return &models.TokenPair{
		AccessToken:      accessStr,
		RefreshToken:     refreshStr,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Sessions) registered(userID uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// parse проверяет подпись, алгоритм, издателя и срок. Срок проверяется по часам
// сервиса без допуска: токен истекает ровно в момент exp. Любая ошибка — ErrUnauthorized.
func (s *Sessions) parse(raw, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return err
	}

	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}

	return nil
}

// VerifyAccessToken проверяет access-токен и возвращает идентичность по актуальной записи.
// Нет токена, битый, чужая подпись, истёк или пользователь удалён — ErrUnauthorized.
func (s *Sessions) VerifyAccessToken(ctx context.Context, raw string) (*models.Identity, error) {
	const op = "service.sessions.VerifyAccessToken"

	unauthorized := fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "invalid access token"))

	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "unauthorized request"))
	}

	var claims accessClaims
	if err := s.parse(raw, s.cfg.AccessSecret, &claims); err != nil {
		log.From(ctx).Debug("access_token_rejected",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, unauthorized
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, unauthorized
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, unauthorized
		}

		return nil, internalError(ctx, op, "user_lookup_failed", err)
	}

	return &models.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	}, nil
}

// Rotate обменивает действующий refresh-токен на новую пару.
// Проверки: подпись refresh-секретом и срок; пользователь существует; токен равен слоту.
// Запись нового refresh — одно условное обновление по (user id, presented),
// поэтому из конкурентных ротаций одного токена успешна ровно одна.
func (s *Sessions) Rotate(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "service.sessions.Rotate"

	lg := log.From(ctx)
	expiredOrUsed := fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "refresh token is expired or used"))

	if presented == "" {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "unauthorized request"))
	}

	var claims refreshClaims
	if err := s.parse(presented, s.cfg.RefreshSecret, &claims); err != nil {
		lg.Warn("refresh_token_rejected",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "invalid refresh token"))
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "invalid refresh token"))
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "invalid refresh token"))
		}

		return nil, internalError(ctx, op, "user_lookup_failed", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		lg.Warn("refresh_token_superseded",
			slog.String("op", op),
			slog.String("user_id", uid.String()),
		)
		return nil, expiredOrUsed
	}

	pair, err := s.sign(user)
	if err != nil {
		return nil, internalError(ctx, op, "token_sign_failed", err)
	}

	if err := s.creds.SwapRefreshToken(ctx, uid, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrTokenMismatch) || errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_rotation_lost",
				slog.String("op", op),
				slog.String("user_id", uid.String()),
			)
			return nil, expiredOrUsed
		}

		return nil, internalError(ctx, op, "refresh_slot_swap_failed", err)
	}

	return pair, nil
}

// Revoke очищает refresh-слот. Повторный вызов и отсутствие пользователя не ошибка.
func (s *Sessions) Revoke(ctx context.Context, userID uuid.UUID) error {
	const op = "service.sessions.Revoke"

	if err := s.creds.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return internalError(ctx, op, "refresh_slot_clear_failed", err)
	}

	return nil
}
