package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/tokenkeeper/internal/core/domain"
)

// IdentityLock serializes token refreshes for one identity across
// processes using SET NX with a TTL. Without it two concurrent refreshes
// can race on the stored refresh token.
type IdentityLock struct {
	client *Client
}

// NewIdentityLock creates a lock backed by the given Redis client.
func NewIdentityLock(client *Client) *IdentityLock {
	return &IdentityLock{client: client}
}

func lockKey(id domain.Identity) string {
	return fmt.Sprintf("refresh_lock:%s:%s", id.Provider, id.UserID)
}

// TryLock attempts to acquire the refresh lock for one identity. It never
// blocks: ok=false means another process holds the lock. The returned
// unlock releases the lock early; the TTL bounds the hold time if the
// holder dies.
func (l *IdentityLock) TryLock(
	ctx context.Context,
	id domain.Identity,
	ttl time.Duration,
) (unlock func(), ok bool, err error) {
	key := lockKey(id)

	ok, err = l.client.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock = func() {
		// Release on a fresh context: the refresh context may already be done.
		delCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.client.rdb.Del(delCtx, key).Err(); err != nil {
			slog.Warn("Failed to release identity lock", "key", key, "error", err)
		}
	}
	return unlock, true, nil
}
