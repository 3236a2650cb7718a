package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/video-share/internal/pkg/log"
)

var (
	// ErrValidation — вход не прошёл проверку формата/ограничений.
	// Транспорт: HTTP 400.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateIdentity — username или email уже заняты.
	// Транспорт: HTTP 409.
	ErrDuplicateIdentity = errors.New("user with email or username already exists")

	// ErrUnauthorized — любая проблема с токеном (нет, битый, чужая подпись, истёк,
	// не совпадает со слотом) или неверный пароль при входе. Транспорт: HTTP 401.
	ErrUnauthorized = errors.New("unauthorized request")

	// ErrNotFound — пользователь/канал/видео не найдены.
	// Транспорт: HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrInternal — сбой хранилища или подписи. Причина только логируется.
	// Транспорт: HTTP 500.
	ErrInternal = errors.New("internal error")

	// ErrRateLimited — превышен лимит неудачных попыток входа.
	// Транспорт: HTTP 429.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrMediaUnavailable — объектное хранилище не сконфигурировано.
	// Транспорт: HTTP 503.
	ErrMediaUnavailable = errors.New("media storage unavailable")
)

// Error — ошибка с устойчивым видом (Kind) и сообщением для клиента.
// errors.Is(err, ErrValidation) работает через Unwrap.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Message возвращает сообщение для клиента: Msg из *Error или текст вида ошибки.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}

	for _, kind := range []error{
		ErrValidation, ErrDuplicateIdentity, ErrUnauthorized, ErrNotFound,
		ErrRateLimited, ErrMediaUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}

	return ErrInternal.Error()
}

// internalError логирует причину и отдаёт наружу только ErrInternal.
func internalError(ctx context.Context, op, event string, err error) error {
	log.From(ctx).Error(event,
		slog.String("op", op),
		slog.String("err", err.Error()),
	)

	return fmt.Errorf("%s: %w", op, ErrInternal)
}
