package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes — предел длины пароля у bcrypt (в байтах, не в символах).
const maxPasswordBytes = 72

// RegisterInput — данные регистрации. AvatarKey/CoverKey — ключ загрузки в объектном
// хранилище или уже размещённый URL (когда хранилище не сконфигурировано).
type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=20"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,bcryptlen"`
	FullName  string `json:"full_name" validate:"required,max=100"`
	AvatarKey string `json:"avatar" validate:"required"`
	CoverKey  string `json:"cover_image"`
}

// LoginInput — вход по username или email.
type LoginInput struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordInput — смена пароля.
type ChangePasswordInput struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,bcryptlen"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// UpdateAccountInput — все поля обязательны.
type UpdateAccountInput struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=20"`
}

// PresignInput — запрос presigned PUT.
type PresignInput struct {
	Kind          string `json:"kind" validate:"required,oneof=avatar cover"`
	ContentType   string `json:"content_type" validate:"required"`
	ContentLength int64  `json:"content_length" validate:"required,gt=0"`
}

// newValidator создаёт validator, который называет поля по json-тегам.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})

	return v
}

// normalizeIdentity — trim + lowercase для username/email.
func normalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateStruct превращает первую ошибку validator в ErrValidation с понятным сообщением.
func (s *Service) validateStruct(op string, in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%s: %w", op, newError(ErrValidation, formatFieldError(verrs[0])))
	}

	return fmt.Errorf("%s: %w", op, newError(ErrValidation, "invalid input"))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return "username or email is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", field, maxPasswordBytes)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
