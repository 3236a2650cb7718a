package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/models"
)

// Passthrough используется, когда S3 не сконфигурирован: presign недоступен,
// а в качестве ключа принимается уже размещённый абсолютный http(s) URI.
type Passthrough struct{}

// NewPassthrough создаёт резолвер без объектного хранилища.
func NewPassthrough() *Passthrough { return &Passthrough{} }

// UploadURL всегда возвращает ErrUnavailable.
func (Passthrough) UploadURL(context.Context, models.MediaKind, uuid.UUID, string, int64) (*models.UploadInfo, error) {
	return nil, fmt.Errorf("media/passthrough/UploadURL: %w", ErrUnavailable)
}

// Resolve возвращает key как есть, если это абсолютный http(s) URL с хостом.
func (Passthrough) Resolve(_ context.Context, kind models.MediaKind, _ uuid.UUID, key string) (string, error) {
	const op = "media/passthrough/Resolve"

	if !kind.Valid() {
		return "", fmt.Errorf("%s: unknown kind %q: %w", op, kind, ErrInvalidArgument)
	}

	raw := strings.TrimSpace(key)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%s: not an absolute http(s) url: %w", op, ErrInvalidArgument)
	}

	return raw, nil
}

var _ Storage = Passthrough{}
