// Package redis реализует межпроцессную аренду очередей принтеров
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "printqueue:lease:"
	defaultTTL = 30 * time.Second
)

// продлеваем и снимаем аренду, только если она всё ещё наша
var (
	extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Connect создаёт клиента по URL (redis://...) или по адресу host:port
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	const op = "repository.redis.Connect"

	var client *goredis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("%s: parse redis url: %w", op, err)
		}
		client = goredis.NewClient(opt)
	} else {
		client = goredis.NewClient(&goredis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}
	return client, nil
}

// Lease хранит аренду очереди принтера на ключе с TTL
// в значении ключа лежит токен процесса, чужой токен продлить или снять нельзя
type Lease struct {
	client goredis.Cmdable
	token  string
}

// NewLease создаёт аренду с уникальным токеном этого процесса
func NewLease(client goredis.Cmdable) *Lease {
	return &Lease{client: client, token: uuid.NewString()}
}

// Token возвращает токен, которым процесс помечает свои аренды
func (l *Lease) Token() string {
	return l.token
}

// Acquire берёт свободную аренду или продлевает свою
func (l *Lease) Acquire(ctx context.Context, printerID string, ttl time.Duration) (bool, error) {
	const op = "repository.redis.Lease.Acquire"

	if ttl <= 0 {
		ttl = defaultTTL
	}
	key := leaseKey(printerID)

	ok, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		return true, nil
	}

	extended, err := extendScript.Run(ctx, l.client, []string{key}, l.token, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return extended == 1, nil
}

// Release снимает аренду, если она принадлежит этому процессу
func (l *Lease) Release(ctx context.Context, printerID string) error {
	const op = "repository.redis.Lease.Release"

	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(printerID)}, l.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func leaseKey(printerID string) string {
	return keyPrefix + printerID
}
