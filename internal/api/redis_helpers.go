package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bulkLimitWindow 覆盖一个自然日，计数键按 UTC 日期滚动。
const bulkLimitWindow = 24 * time.Hour

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func bulkLimitKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("bulk_generate:%s:%s", ownerID, now.UTC().Format("20060102"))
}

// allowBulk 计入一次批量生成并判断是否仍在每日额度内。
// 被拒绝的请求同样计数，避免客户端反复重试绕过限额。
func allowBulk(ctx context.Context, counter redisRateCounter, ownerID string, now time.Time, limit int) (bool, error) {
	if limit <= 0 || counter == nil {
		return true, nil
	}
	count, err := counter.Incr(ctx, bulkLimitKey(ownerID, now)).Result()
	if err != nil {
		return false, fmt.Errorf("incr bulk counter: %w", err)
	}
	if count == 1 {
		_ = counter.Expire(ctx, bulkLimitKey(ownerID, now), bulkLimitWindow).Err()
	}
	return count <= int64(limit), nil
}
