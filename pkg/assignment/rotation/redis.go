package rotation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "automation:rotation:"

// Redis advances cursors through Redis INCR, which is atomic across
// processes. The absolute counter is reduced modulo the current pool size on
// read, so a pool membership change simply wraps the cursor into range.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Next(ctx context.Context, ruleID string, poolSize int) (int, error) {
	if poolSize <= 0 {
		return 0, ErrEmptyPool
	}

	counter, err := r.client.Incr(ctx, redisKeyPrefix+ruleID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance rotation counter for rule %s: %w", ruleID, err)
	}

	// Counter starts at 1 after the first INCR; shift so the first advance
	// lands on candidate 0.
	return int((counter - 1) % int64(poolSize)), nil
}
