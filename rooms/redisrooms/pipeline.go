package redisrooms

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// batchError inspects every command of an executed pipeline and aggregates the
// failures into one error. A pipeline gives no isolation or rollback: commands
// that ran before a failing one stay applied, so callers get a single combined
// error naming everything that went wrong rather than a silent partial write.
func batchError(cmds []redis.Cmder, execErr error) error {
	var combined error
	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil && err != redis.Nil {
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", cmd.Name(), err))
		}
	}
	if combined != nil {
		return fmt.Errorf("pipeline: %w", combined)
	}
	// Exec can fail before any command produced an individual error, e.g. a
	// broken connection.
	if execErr != nil && execErr != redis.Nil {
		return fmt.Errorf("pipeline exec: %w", execErr)
	}
	return nil
}
