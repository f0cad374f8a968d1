// internal/workers/application/check-signing-status/override.go
package checksigningstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-intake/internal/common/logger"
)

// OverrideKey is the Redis key whose presence marks an application as
// signed by an operator.
func OverrideKey(prefix, applicationID string) string {
	return prefix + applicationID
}

// SetOverride marks applicationID as signed for ttl.
func SetOverride(ctx context.Context, rdb *redis.Client, prefix, applicationID string, ttl time.Duration) error {
	if applicationID == "" {
		return fmt.Errorf("application id is required")
	}
	if err := rdb.Set(ctx, OverrideKey(prefix, applicationID), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set signing override: %w", err)
	}
	return nil
}

// ClearOverride removes the flag. Missing keys are not an error.
func ClearOverride(ctx context.Context, rdb *redis.Client, prefix, applicationID string) error {
	if err := rdb.Del(ctx, OverrideKey(prefix, applicationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear signing override: %w", err)
	}
	return nil
}

// overrideCheck reports whether the override key exists. A Redis failure is
// logged and read as "no override" so polling the staff API carries on;
// only a cancelled context stops the wait.
func overrideCheck(rdb *redis.Client, key string, log logger.Logger) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		n, err := rdb.Exists(ctx, key).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			log.Warn("signing override check failed, continuing to poll", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			return false, nil
		}
		return n > 0, nil
	}
}
