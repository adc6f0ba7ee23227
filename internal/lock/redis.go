package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrNotConfigured = errors.New("lock client not configured")
	ErrHeld          = errors.New("lock held")
	errEmptyKey      = errors.New("lock key is empty")
	errInvalidTTL    = errors.New("lock ttl must be positive")
)

// Lease is proof of holding a Redis lock.
type Lease struct {
	Key   string
	Token string
}

// Locker is a single-key Redis mutex. Release only deletes the key while it
// still carries the lease token, so a lock that expired and was taken by
// another replica is left alone.
type Locker struct {
	client redis.UniversalClient
	script *redis.Script
}

func NewLocker(client redis.UniversalClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// Acquire takes key for ttl or returns ErrHeld.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrNotConfigured
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errEmptyKey
	}
	if ttl <= 0 {
		return nil, errInvalidTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{Key: key, Token: token}, nil
}

func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if l == nil || l.client == nil || lease == nil {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
