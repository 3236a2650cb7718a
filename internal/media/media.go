// media отвечает за изображения профиля (аватар и обложка):
//   - minio.go — presigned PUT и подтверждение загрузки в MinIO/S3;
//   - passthrough.go — режим без объектного хранилища: принимаются уже размещённые http(s) URI.
//
// Ключи объектов имеют вид "<kind>/<owner>/<uuid>.<ext>". Для загрузок до регистрации
// owner равен uuid.Nil.
package media

//go:generate mockgen -source=media.go -destination=../../mocks/mock_media.go -package=mocks -mock_names=Storage=MockMediaStorage

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
)

var (
	// ErrInvalidArgument — нарушены ограничения запроса (тип/размер/ключ).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — объект (ключ) отсутствует в бакете.
	ErrNotFound = errors.New("media not found")
	// ErrUnavailable — объектное хранилище не сконфигурировано.
	ErrUnavailable = errors.New("media storage unavailable")
)

// Storage — контракт выдачи presigned URL и превращения ключа загрузки в публичный URI.
type Storage interface {
	// UploadURL генерирует presigned PUT для изображения kind владельца owner.
	UploadURL(ctx context.Context, kind models.MediaKind, owner uuid.UUID, contentType string, contentLength int64) (*models.UploadInfo, error)
	// Resolve проверяет загруженный объект и возвращает URI для записи в профиль.
	Resolve(ctx context.Context, kind models.MediaKind, owner uuid.UUID, key string) (string, error)
}

// keyPrefix — "<kind>/<owner>/".
func keyPrefix(kind models.MediaKind, owner uuid.UUID) string {
	return path.Join(string(kind), owner.String()) + "/"
}

// extFor подбирает расширение по MIME-типу.
func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// isAllowedContentType проверяет, что тип содержимого входит в allow-list.
func isAllowedContentType(allow []string, contentType string) bool {
	return slices.Contains(allow, strings.TrimSpace(contentType))
}
