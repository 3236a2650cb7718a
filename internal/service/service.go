// service содержит бизнес-логику users-service:
// регистрацию и вход, жизненный цикл сессионных токенов (Credentials + Sessions),
// изображения профиля, подписки и историю просмотров.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для конкурентного
//     использования, если переданное хранилище потокобезопасно.
//   - Ошибки имеют устойчивый вид (см. errors.go) и маппятся транспортом на HTTP-коды.
//   - Внутренние сбои логируются с причиной и наружу уходят только как ErrInternal.
package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pribylovaa/video-share/internal/cache"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/media"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/storage"
)

// Service описывает бизнес-логику users-service.
type Service struct {
	storage  storage.Storage
	creds    *Credentials
	sessions *Sessions
	media    media.Storage
	limiter  cache.LoginLimiter
	metrics  *metrics.Metrics
	validate *validator.Validate
	// clock подменяется в тестах; Credentials и Sessions читают его через замыкание.
	clock func() time.Time
}

// New создаёт Service. Media по умолчанию — Passthrough, ограничитель входа — Nop.
func New(st storage.Storage, cfg config.AuthConfig) *Service {
	s := &Service{
		storage:  st,
		media:    media.NewPassthrough(),
		limiter:  cache.Nop{},
		validate: newValidator(),
		clock:    func() time.Time { return time.Now().UTC() },
	}

	s.creds = NewCredentials(st, cfg.BcryptCost, s.now)
	s.sessions = NewSessions(s.creds, st, cfg, s.now)

	return s
}

func (s *Service) now() time.Time { return s.clock() }

// SetMedia устанавливает хранилище изображений (MinIO).
func (s *Service) SetMedia(m media.Storage) {
	if m != nil {
		s.media = m
	}
}

// SetLoginLimiter устанавливает ограничитель неудачных входов (Redis).
func (s *Service) SetLoginLimiter(l cache.LoginLimiter) {
	if l != nil {
		s.limiter = l
	}
}

// SetMetrics включает учёт исходов операций аутентификации.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Credentials возвращает хранилище учётных данных.
func (s *Service) Credentials() *Credentials { return s.creds }

// Sessions возвращает менеджер токенов (используется транспортом в Auth middleware).
func (s *Service) Sessions() *Sessions { return s.sessions }
