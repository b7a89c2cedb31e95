package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// releaseLockScript deletes the lock only while it still holds the caller's token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// AcquireLock claims the named lock for ttl. The returned token must be passed
// to ReleaseLock; it is empty when the lock is held elsewhere.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.cmd.SetNX(ctx, c.LockKey(name), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock frees the lock if token still owns it and reports whether it did.
// An expired or stolen lock is left alone.
func (c *Client) ReleaseLock(ctx context.Context, name, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := c.cmd.Eval(ctx, releaseLockScript, []string{c.LockKey(name)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", name, err)
	}
	return n == 1, nil
}
