// errors стандартизирует ответы об ошибках HTTP-слоя users-service.
// На вход принимается ошибка сервисного слоя (вид из service/errors.go),
// на выход:
//   - HTTP-статус;
//   - стабильный машиночитаемый code;
//   - безопасное message без утечки деталей (для внутренних сбоев всегда "internal error").
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/video-share/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrBadRequest — локальная ошибка разбора запроса (битый JSON, неверный UUID).
var ErrBadRequest = stderrors.New("invalid request body")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal;
//   - ErrValidation и ErrBadRequest → 400;
//   - ErrDuplicateIdentity → 409;
//   - ErrUnauthorized → 401;
//   - ErrNotFound → 404;
//   - ErrRateLimited → 429;
//   - ErrMediaUnavailable → 503;
//   - context.Canceled → 499, context.DeadlineExceeded → 504;
//   - прочее → 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code := classify(err)

	msg := "internal error"
	switch {
	case status == http.StatusInternalServerError:
	case stderrors.Is(err, ErrBadRequest):
		msg = ErrBadRequest.Error()
	case status == StatusClientClosedRequest:
		msg = "canceled"
	case status == http.StatusGatewayTimeout:
		msg = "deadline exceeded"
	default:
		msg = service.Message(err)
	}

	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

func classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal"
	case stderrors.Is(err, ErrBadRequest), stderrors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_argument"
	case stderrors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict, "already_exists"
	case stderrors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated"
	case stderrors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case stderrors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "resource_exhausted"
	case stderrors.Is(err, service.ErrMediaUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус/тело и добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
