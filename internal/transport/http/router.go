package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/video-share/internal/metrics"
	"github.com/pribylovaa/video-share/internal/transport/http/handlers"
	"github.com/pribylovaa/video-share/internal/transport/http/middleware"
)

// MaxBodyBytes — предел размера тела запроса API.
const MaxBodyBytes = 16 << 10

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	BasePath string // например, "/api/v1/users"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(h *handlers.Handlers, verifier middleware.TokenVerifier, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: request_id попадает в attrs
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout),
		middleware.BodyLimit(MaxBodyBytes),
	)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, verifier)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, verifier)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, verifier middleware.TokenVerifier) {
	// auth
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh-tokens", h.RefreshTokens)
	r.With(middleware.OptionalAuth(verifier)).Post("/media/presign", h.PresignMedia)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(verifier))

		// account
		r.Post("/logout", h.Logout)
		r.Post("/change-password", h.ChangePassword)
		r.Get("/current-user", h.CurrentUser)
		r.Patch("/update-account", h.UpdateAccount)
		r.Patch("/avatar", h.UpdateAvatar)
		r.Patch("/cover-image", h.UpdateCover)

		// channel
		r.Get("/channel/{username}", h.ChannelProfile)
		r.Post("/channel/{username}/subscription", h.Subscribe)
		r.Delete("/channel/{username}/subscription", h.Unsubscribe)

		// history
		r.Get("/watch-history", h.WatchHistory)
		r.Post("/watch-history", h.RecordWatch)
	})
}
