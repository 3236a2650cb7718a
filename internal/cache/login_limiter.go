// cache содержит ограничитель неудачных попыток входа на Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter — контракт ограничителя неудачных попыток входа по идентичности
// (нормализованный username или email).
type LoginLimiter interface {
	// Blocked сообщает, исчерпан ли лимит неудачных попыток в текущем окне.
	Blocked(ctx context.Context, identity string) (bool, error)
	// RegisterFailure увеличивает счётчик; первое увеличение открывает окно.
	RegisterFailure(ctx context.Context, identity string) error
	// Reset сбрасывает счётчик после успешного входа.
	Reset(ctx context.Context, identity string) error
	// Close закрывает клиент.
	Close() error
}

type redisLimiter struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int64
	window      time.Duration
}

// NewRedisLoginLimiter создаёт ограничитель из URL (например, redis://:pass@host:6379/0).
// Окно фиксированное: INCR, а на первом инкременте — EXPIRE на window.
func NewRedisLoginLimiter(ctx context.Context, redisURL string, maxAttempts int, window time.Duration) (LoginLimiter, error) {
	const op = "cache.NewRedisLoginLimiter"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newRedisLimiter(rdb, maxAttempts, window), nil
}

func newRedisLimiter(rdb *redis.Client, maxAttempts int, window time.Duration) *redisLimiter {
	return &redisLimiter{
		rdb:         rdb,
		prefix:      "videoshare:login:",
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (l *redisLimiter) key(identity string) string { return l.prefix + identity }

func (l *redisLimiter) Blocked(ctx context.Context, identity string) (bool, error) {
	raw, err := l.rdb.Get(ctx, l.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache.Blocked: %w", err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("cache.Blocked: bad counter %q: %w", raw, err)
	}

	return n >= l.maxAttempts, nil
}

// RegisterFailure атомарно (MULTI/EXEC) создаёт счётчик с TTL окна, если его нет,
// и увеличивает его. Существующее окно не продлевается.
func (l *redisLimiter) RegisterFailure(ctx context.Context, identity string) error {
	key := l.key(identity)

	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache.RegisterFailure: %w", err)
	}

	return nil
}

func (l *redisLimiter) Reset(ctx context.Context, identity string) error {
	if err := l.rdb.Del(ctx, l.key(identity)).Err(); err != nil {
		return fmt.Errorf("cache.Reset: %w", err)
	}

	return nil
}

func (l *redisLimiter) Close() error { return l.rdb.Close() }

// Ping проверяет доступность Redis для /healthz.
func (l *redisLimiter) Ping(ctx context.Context) error { return l.rdb.Ping(ctx).Err() }

// Nop — ограничитель-заглушка, когда Redis не сконфигурирован.
type Nop struct{}

func (Nop) Blocked(context.Context, string) (bool, error) { return false, nil }
func (Nop) RegisterFailure(context.Context, string) error { return nil }
func (Nop) Reset(context.Context, string) error           { return nil }
func (Nop) Close() error                                  { return nil }

var (
	_ LoginLimiter = (*redisLimiter)(nil)
	_ LoginLimiter = Nop{}
)
