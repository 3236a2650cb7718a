package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/models"
)

// MinioStorage — адаптер MinIO для изображений профиля.
type MinioStorage struct {
	s3      config.S3Config
	limits  config.MediaConfig
	client  *mclient.Client
	baseURL string
}

// NewMinio создает клиент MinIO.
// Убирает схему из endpoint, подбирает Secure по схеме
// и выполняет fail-fast-проверку доступности бакета.
func NewMinio(ctx context.Context, cfg *config.Config) (*MinioStorage, error) {
	const op = "media/minio/New"

	endpoint := cfg.S3.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.RootUser, cfg.S3.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.S3.Bucket)
	}

	base := strings.TrimRight(cfg.S3.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		base = scheme + "://" + endpoint + "/" + cfg.S3.Bucket
	}

	return &MinioStorage{s3: cfg.S3, limits: cfg.Media, client: client, baseURL: base}, nil
}

// UploadURL валидирует contentType и contentLength, формирует ключ
// "<kind>/<owner>/<uuid>.<ext>" и возвращает presigned PUT с обязательными заголовками.
func (s *MinioStorage) UploadURL(ctx context.Context, kind models.MediaKind, owner uuid.UUID, contentType string, contentLength int64) (*models.UploadInfo, error) {
	const op = "media/minio/UploadURL"

	if !kind.Valid() {
		return nil, fmt.Errorf("%s: unknown kind %q: %w", op, kind, ErrInvalidArgument)
	}

	if contentLength <= 0 || contentLength > s.limits.MaxSizeBytes {
		return nil, fmt.Errorf("%s: content length %d: %w", op, contentLength, ErrInvalidArgument)
	}

	if !isAllowedContentType(s.limits.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%s: content type %q: %w", op, contentType, ErrInvalidArgument)
	}

	key := path.Join(string(kind), owner.String(), uuid.NewString()+extFor(contentType))

	u, err := s.client.PresignedPutObject(ctx, s.s3.Bucket, key, s.s3.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.UploadInfo{
		UploadURL: u.String(),
		Key:       key,
		Expires:   s.s3.PresignTTL,
		RequiredHeaders: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": fmt.Sprintf("%d", contentLength),
		},
	}, nil
}

// Resolve подтверждает загрузку по key: ключ принадлежит (kind, owner),
// объект существует и удовлетворяет ограничениям размера/типа.
func (s *MinioStorage) Resolve(ctx context.Context, kind models.MediaKind, owner uuid.UUID, key string) (string, error) {
	const op = "media/minio/Resolve"

	key = strings.TrimSpace(key)
	if !kind.Valid() || !strings.HasPrefix(key, keyPrefix(kind, owner)) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%s: foreign key: %w", op, ErrInvalidArgument)
	}

	objInfo, err := s.client.StatObject(ctx, s.s3.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == 404 {
			return "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if objInfo.Size <= 0 || objInfo.Size > s.limits.MaxSizeBytes {
		return "", fmt.Errorf("%s: object size %d: %w", op, objInfo.Size, ErrInvalidArgument)
	}

	if ct := objInfo.ContentType; ct != "" && !isAllowedContentType(s.limits.AllowedContentTypes, ct) {
		return "", fmt.Errorf("%s: object content type %q: %w", op, ct, ErrInvalidArgument)
	}

	return s.baseURL + "/" + key, nil
}

// Ping проверяет доступность бакета для /healthz.
func (s *MinioStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.s3.Bucket)
	return err
}

// Проверка выполнения контракта.
var _ Storage = (*MinioStorage)(nil)
