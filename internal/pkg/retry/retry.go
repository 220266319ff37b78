// internal/pkg/retry/retry.go
package retry

import (
	"context"
	"time"

	"orderpipeline/internal/pkg/logger"
)

// Do 以固定间隔重复执行 op，最多执行 attempts 次，返回最后一次的错误。
// 这是一个同步的、阻塞式的本地重试：sleep 会占用调用方的执行线程，
// 从而天然形成背压（下游变慢时消费速率随之下降，而不是崩溃）。
//
// 注意：这里不区分错误类型——校验类的永久失败和网络抖动会被同等重试。
func Do(ctx context.Context, attempts int, delay time.Duration, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr = op(ctx); lastErr == nil {
			return nil
		}

		if i < attempts {
			logger.Ctx(ctx).Warn().
				Err(lastErr).
				Int("attempt", i).
				Int("max_attempts", attempts).
				Msg("operation failed, will retry")
		}
	}
	return lastErr
}
