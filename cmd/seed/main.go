// seed наполняет хранилище демонстрационными пользователями, видео,
// подписками и историей просмотров. Повторный запуск не создаёт дубликатов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/models"
	"github.com/pribylovaa/video-share/internal/pkg/log"
	"github.com/pribylovaa/video-share/internal/service"
	"github.com/pribylovaa/video-share/internal/storage"
	"github.com/pribylovaa/video-share/internal/storage/driver"
)

// seedNamespace даёт стабильные ID видео между запусками.
var seedNamespace = uuid.MustParse("6f1c1c3e-5d0a-4a4e-9a57-3a0d1b8e2f10")

type demoUser struct {
	Username string
	Email    string
	FullName string
}

type demoVideo struct {
	Title    string
	Owner    string
	Duration float64
}

var (
	demoUsers = []demoUser{
		{Username: "alice", Email: "alice@example.com", FullName: "Alice Liddell"},
		{Username: "bob", Email: "bob@example.com", FullName: "Bob Marley"},
		{Username: "carol", Email: "carol@example.com", FullName: "Carol Danvers"},
	}

	demoVideos = []demoVideo{
		{Title: "Intro to Go", Owner: "alice", Duration: 612},
		{Title: "Channels in depth", Owner: "alice", Duration: 1440},
		{Title: "Reggae guitar basics", Owner: "bob", Duration: 905},
		{Title: "Flight log #1", Owner: "carol", Duration: 300},
	}

	// subscriber -> channels
	demoSubscriptions = map[string][]string{
		"bob":   {"alice"},
		"carol": {"alice", "bob"},
	}

	// user -> titles в порядке просмотра
	demoHistory = map[string][]string{
		"bob":   {"Intro to Go", "Channels in depth", "Intro to Go"},
		"carol": {"Reggae guitar basics"},
	}
)

func main() {
	var (
		configPath string
		password   string
	)
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.StringVar(&password, "password", "password123", "password for every demo user")
	flag.Parse()

	cfg := config.MustLoad(configPath)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = log.Into(ctx, logger)

	st, err := driver.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = st.Close(context.Background()) }()

	creds := service.NewCredentials(st, cfg.Auth.BcryptCost, nil)

	if err := seed(ctx, st, creds, password); err != nil {
		logger.Error("seed_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger.Info("seed_completed",
		slog.Int("users", len(demoUsers)),
		slog.Int("videos", len(demoVideos)),
	)
}

func seed(ctx context.Context, st storage.Storage, creds *service.Credentials, password string) error {
	const op = "seed"

	users := make(map[string]*models.User, len(demoUsers))
	for _, du := range demoUsers {
		u, err := ensureUser(ctx, st, creds, du, password)
		if err != nil {
			return fmt.Errorf("%s: user %s: %w", op, du.Username, err)
		}
		users[du.Username] = u
	}

	now := time.Now().UTC()
	videos := make(map[string]uuid.UUID, len(demoVideos))
	for _, dv := range demoVideos {
		v := &models.Video{
			ID:          uuid.NewSHA1(seedNamespace, []byte(dv.Title)),
			VideoFile:   "https://cdn.example.com/videos/" + slug(dv.Title) + ".mp4",
			Thumbnail:   "https://cdn.example.com/thumbs/" + slug(dv.Title) + ".jpg",
			Title:       dv.Title,
			Description: dv.Title + " by " + dv.Owner,
			Duration:    dv.Duration,
			IsPublished: true,
			OwnerID:     users[dv.Owner].ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.SaveVideo(ctx, v); err != nil {
			return fmt.Errorf("%s: video %q: %w", op, dv.Title, err)
		}
		videos[dv.Title] = v.ID
	}

	for subscriber, channels := range demoSubscriptions {
		for _, ch := range channels {
			sub := models.Subscription{
				Subscriber: users[subscriber].ID,
				Channel:    users[ch].ID,
				CreatedAt:  now,
			}
			if err := st.SaveSubscription(ctx, sub); err != nil {
				return fmt.Errorf("%s: subscription %s->%s: %w", op, subscriber, ch, err)
			}
		}
	}

	for username, titles := range demoHistory {
		u := users[username]
		if len(u.WatchHistory) > 0 {
			continue
		}
		for _, title := range titles {
			if err := st.AppendWatchHistory(ctx, u.ID, videos[title], now); err != nil {
				return fmt.Errorf("%s: history %s: %w", op, username, err)
			}
		}
	}

	return nil
}

// ensureUser создаёт пользователя или возвращает уже существующего.
func ensureUser(ctx context.Context, st storage.Storage, creds *service.Credentials, du demoUser, password string) (*models.User, error) {
	u, err := creds.Create(ctx, service.NewUser{
		Username:  du.Username,
		Email:     du.Email,
		FullName:  du.FullName,
		AvatarURL: "https://cdn.example.com/avatars/" + du.Username + ".png",
	}, password)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, service.ErrDuplicateIdentity) {
		return nil, err
	}

	return st.UserByUsername(ctx, du.Username)
}

func slug(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case len(out) > 0 && out[len(out)-1] != '-':
			out = append(out, '-')
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}

	return string(out)
}
