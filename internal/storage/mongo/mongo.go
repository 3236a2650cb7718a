package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pribylovaa/video-share/internal/config"
	"github.com/pribylovaa/video-share/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection         = "users"
	videosCollection        = "videos"
	subscriptionsCollection = "subscriptions"
	defaultDBName           = "videoshare"
)

// Mongo - тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	client        *mongodriver.Client
	db            *mongodriver.Database
	users         *mongodriver.Collection
	videos        *mongodriver.Collection
	subscriptions *mongodriver.Collection
}

// New подключается к MongoDB, проверяет его, подготавливает коллекции и обеспечивает индексацию.
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	const op = "storage.mongo.New"

	if cfg == nil {
		return nil, fmt.Errorf("%s: nil config", op)
	}

	if cfg.Mongo.URL == "" {
		return nil, fmt.Errorf("%s: empty cfg.Mongo.URL", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := cli.Database(databaseFromURI(cfg.Mongo.URL))

	m := &Mongo{
		client:        cli,
		db:            db,
		users:         db.Collection(usersCollection),
		videos:        db.Collection(videosCollection),
		subscriptions: db.Collection(subscriptionsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping проверяет доступность primary для /healthz.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes создаёт индексы:
// - users: уникальные username и email;
// - videos: owner для выборок по владельцу;
// - subscriptions: уникальная пара (subscriber, channel) и channel для подсчёта подписчиков.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	const op = "storage.mongo.ensureIndexes"

	userIdx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("uniq_username").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
	}
	if _, err := m.users.Indexes().CreateMany(ctx, userIdx); err != nil {
		return fmt.Errorf("%s: users: %w", op, err)
	}

	videoIdx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}},
			Options: options.Index().SetName("owner"),
		},
	}
	if _, err := m.videos.Indexes().CreateMany(ctx, videoIdx); err != nil {
		return fmt.Errorf("%s: videos: %w", op, err)
	}

	subIdx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}},
			Options: options.Index().SetName("uniq_subscriber_channel").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "channel", Value: 1}},
			Options: options.Index().SetName("channel"),
		},
	}
	if _, err := m.subscriptions.Indexes().CreateMany(ctx, subIdx); err != nil {
		return fmt.Errorf("%s: subscriptions: %w", op, err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Mongo)(nil)
