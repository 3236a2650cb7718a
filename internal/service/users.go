package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/pkg/redact"
	"github.com/pribylovaa/video-share/internal/storage"
)

// Register создаёт учётную запись. Аватар обязателен, обложка опциональна.
// Сессия не открывается: клиент выполняет Login отдельно.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	const op = "service.users.Register"

	in.Username = normalizeIdentity(in.Username)
	in.Email = normalizeIdentity(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarKey = strings.TrimSpace(in.AvatarKey)
	in.CoverKey = strings.TrimSpace(in.CoverKey)

	if err := s.validateStruct(op, in); err != nil {
		s.metrics.AuthOp("register", metrics.ResultInvalid)
		return nil, err
	}

	avatarURL, err := s.resolveMedia(ctx, op, models.MediaAvatar, uuid.Nil, in.AvatarKey)
	if err != nil {
		s.metrics.AuthOp("register", metrics.ResultInvalid)
		return nil, err
	}

	var coverURL string
	if in.CoverKey != "" {
		coverURL, err = s.resolveMedia(ctx, op, models.MediaCover, uuid.Nil, in.CoverKey)
		if err != nil {
			s.metrics.AuthOp("register", metrics.ResultInvalid)
			return nil, err
		}
	}

	user, err := s.creds.Create(ctx, NewUser{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}, in.Password)
	if err != nil {
		s.metrics.AuthOp("register", resultOf(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthOp("register", metrics.ResultOK)

	return user.Public(), nil
}

// Login проверяет пароль и выпускает пару токенов.
// Нет пользователя — ErrNotFound, неверный пароль — ErrUnauthorized (слот не меняется).
// При включённом ограничителе исчерпанный лимит — ErrRateLimited до проверки пароля.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.PublicUser, *models.TokenPair, error) {
	const op = "service.users.Login"

	in.Username = normalizeIdentity(in.Username)
	in.Email = normalizeIdentity(in.Email)

	if err := s.validateStruct(op, in); err != nil {
		s.metrics.AuthOp("login", metrics.ResultInvalid)
		return nil, nil, err
	}

	identity := in.Username
	if identity == "" {
		identity = in.Email
	}

	lg := log.From(ctx).With(slog.String("identity", redact.Identity(identity)))

	blocked, err := s.limiter.Blocked(ctx, identity)
	if err != nil {
		lg.Warn("login_limiter_unavailable", slog.String("op", op), slog.String("err", err.Error()))
	}
	if blocked {
		s.metrics.AuthOp("login", metrics.ResultLimited)
		lg.Warn("login_rate_limited", slog.String("op", op))
		return nil, nil, fmt.Errorf("%s: %w", op, newError(ErrRateLimited, "too many failed login attempts, try again later"))
	}

	user, err := s.findForLogin(ctx, in)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.registerFailure(ctx, lg, op, identity)
			s.metrics.AuthOp("login", metrics.ResultDenied)
			return nil, nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		s.metrics.AuthOp("login", metrics.ResultError)
		return nil, nil, internalError(ctx, op, "user_lookup_failed", err)
	}

	if !s.creds.VerifyPassword(user, in.Password) {
		s.registerFailure(ctx, lg, op, identity)
		s.metrics.AuthOp("login", metrics.ResultDenied)
		lg.Info("login_denied", slog.String("op", op))
		return nil, nil, fmt.Errorf("%s: %w", op, newError(ErrUnauthorized, "invalid user credentials"))
	}

	if err := s.limiter.Reset(ctx, identity); err != nil {
		lg.Warn("login_limiter_reset_failed", slog.String("op", op), slog.String("err", err.Error()))
	}

	pair, err := s.sessions.issue(ctx, user)
	if err != nil {
		s.metrics.AuthOp("login", metrics.ResultError)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthOp("login", metrics.ResultOK)
	lg.Info("login_succeeded", slog.String("op", op), slog.String("user_id", user.ID.String()))

	return user.Public(), pair, nil
}

// findForLogin ищет по username, а если он не задан или не найден — по email.
func (s *Service) findForLogin(ctx context.Context, in LoginInput) (*models.User, error) {
	if in.Username != "" {
		user, err := s.storage.UserByUsername(ctx, in.Username)
		if err == nil || !errors.Is(err, storage.ErrNotFound) || in.Email == "" {
			return user, err
		}
	}

	return s.storage.UserByEmail(ctx, in.Email)
}

func (s *Service) registerFailure(ctx context.Context, lg *slog.Logger, op, identity string) {
	if err := s.limiter.RegisterFailure(ctx, identity); err != nil {
		lg.Warn("login_limiter_unavailable", slog.String("op", op), slog.String("err", err.Error()))
	}
}

// Logout очищает refresh-слот пользователя. Идемпотентен.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.users.Logout"

	if err := s.sessions.Revoke(ctx, userID); err != nil {
		s.metrics.AuthOp("logout", metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthOp("logout", metrics.ResultOK)

	return nil
}

// RefreshTokens ротирует пару по предъявленному refresh-токену.
func (s *Service) RefreshTokens(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "service.users.RefreshTokens"

	pair, err := s.sessions.Rotate(ctx, strings.TrimSpace(presented))
	if err != nil {
		s.metrics.AuthOp("refresh", resultOf(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthOp("refresh", metrics.ResultOK)

	return pair, nil
}

// ChangePassword меняет пароль после проверки старого.
// Несовпадение подтверждения или неверный старый пароль — ErrValidation.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	const op = "service.users.ChangePassword"

	if err := s.validateStruct(op, in); err != nil {
		return err
	}

	if in.NewPassword != in.ConfirmPassword {
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, "new password and confirm password must match"))
	}

	user, err := s.loadUser(ctx, op, userID)
	if err != nil {
		return err
	}

	if !s.creds.VerifyPassword(user, in.OldPassword) {
		s.metrics.AuthOp("change_password", metrics.ResultDenied)
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, "invalid old password"))
	}

	if err := s.creds.SetPassword(ctx, user, in.NewPassword); err != nil {
		s.metrics.AuthOp("change_password", resultOf(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthOp("change_password", metrics.ResultOK)
	log.From(ctx).Info("password_changed", slog.String("op", op), slog.String("user_id", userID.String()))

	return nil
}

// CurrentUser возвращает публичное представление пользователя.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	const op = "service.users.CurrentUser"

	user, err := s.loadUser(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	return user.Public(), nil
}

// UpdateAccount меняет full name, email и username (все обязательны).
func (s *Service) UpdateAccount(ctx context.Context, userID uuid.UUID, in UpdateAccountInput) (*models.PublicUser, error) {
	const op = "service.users.UpdateAccount"

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeIdentity(in.Email)
	in.Username = normalizeIdentity(in.Username)

	if err := s.validateStruct(op, in); err != nil {
		return nil, err
	}

	user, err := s.storage.UpdateAccount(ctx, userID, models.AccountUpdate{
		FullName: in.FullName,
		Email:    in.Email,
		Username: in.Username,
	}, s.now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, fmt.Errorf("%s: %w", op, newError(ErrDuplicateIdentity, ErrDuplicateIdentity.Error()))
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		default:
			return nil, internalError(ctx, op, "update_account_failed", err)
		}
	}

	return user.Public(), nil
}

func (s *Service) loadUser(ctx context.Context, op string, userID uuid.UUID) (*models.User, error) {
	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, newError(ErrNotFound, "user does not exist"))
		}

		return nil, internalError(ctx, op, "user_lookup_failed", err)
	}

	return user, nil
}

// resultOf классифицирует ошибку для метрик.
func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotFound):
		return metrics.ResultDenied
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicateIdentity):
		return metrics.ResultInvalid
	case errors.Is(err, ErrRateLimited):
		return metrics.ResultLimited
	default:
		return metrics.ResultError
	}
}
