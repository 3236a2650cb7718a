package models

import "time"

// MediaKind — тип изображения профиля.
type MediaKind string

const (
	MediaAvatar MediaKind = "avatar"
	MediaCover  MediaKind = "cover"
)

// Valid сообщает, известен ли тип.
func (k MediaKind) Valid() bool {
	return k == MediaAvatar || k == MediaCover
}

// UploadInfo — данные для presigned PUT загрузки.
//   - UploadURL: конечный URL для PUT-запроса;
//   - Key: ключ будущего объекта в бакете, его клиент передаёт при подтверждении;
//   - Expires: время жизни подписи;
//   - RequiredHeaders: заголовки, которые клиент обязан передать при PUT.
type UploadInfo struct {
	UploadURL       string            `json:"upload_url"`
	Key             string            `json:"key"`
	Expires         time.Duration     `json:"expires"`
	RequiredHeaders map[string]string `json:"required_headers"`
}
