package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseLost is returned by Claim.Extend once another holder owns the key.
var ErrLeaseLost = errors.New("pipeline: lease lost")

// Lease grants exclusive processing of a key for a bounded time.
type Lease interface {
	// Acquire returns ok=false when another holder owns key. The claim must be released when ok.
	Acquire(ctx context.Context, key string, ttl time.Duration) (claim Claim, ok bool, err error)
}

// Claim is a held lease.
type Claim interface {
	// Extend moves expiry to ttl from now, provided the claim is still ours.
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// LocalLease coordinates workers inside one process.
type LocalLease struct {
	mu      sync.Mutex
	holders map[string]localHolder
	seq     uint64
	now     func() time.Time
}

type localHolder struct {
	token   uint64
	expires time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{holders: make(map[string]localHolder), now: time.Now}
}

func (l *LocalLease) Acquire(_ context.Context, key string, ttl time.Duration) (Claim, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, held := l.holders[key]; held && now.Before(h.expires) {
		return nil, false, nil
	}
	l.seq++
	l.holders[key] = localHolder{token: l.seq, expires: now.Add(ttl)}
	return &localClaim{lease: l, key: key, token: l.seq}, true, nil
}

type localClaim struct {
	lease *LocalLease
	key   string
	token uint64
}

func (c *localClaim) Extend(_ context.Context, ttl time.Duration) error {
	l := c.lease
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[c.key]
	if !ok || h.token != c.token {
		return ErrLeaseLost
	}
	h.expires = l.now().Add(ttl)
	l.holders[c.key] = h
	return nil
}

func (c *localClaim) Release() {
	l := c.lease
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holders[c.key]; ok && h.token == c.token {
		delete(l.holders, c.key)
	}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLease coordinates workers across processes with SET NX PX.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLease(client redis.UniversalClient, prefix string) *RedisLease {
	if prefix == "" {
		prefix = "mueck:lease:"
	}
	return &RedisLease{client: client, prefix: prefix}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (Claim, bool, error) {
	if l.client == nil {
		return nil, false, errors.New("redis lease: client is nil")
	}
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lease %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisClaim{client: l.client, key: fullKey, token: token}, true, nil
}

type redisClaim struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (c *redisClaim) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, c.client, []string{c.key}, c.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis lease %s: extend: %w", c.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (c *redisClaim) Release() {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = releaseScript.Run(releaseCtx, c.client, []string{c.key}, c.token).Err()
}

// NewRedisClient parses REDIS_URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
