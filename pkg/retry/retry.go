// Package retry 提供带指数退避的重试
package retry

import (
	"context"
	"time"
)

// Backoff 重试参数
type Backoff struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Do 执行 fn 直到成功、达到次数上限或 ctx 取消，返回最后一次错误
func Do(ctx context.Context, b Backoff, fn func(attempt int) error) error {
	attempts := max(b.MaxAttempts, 1)
	delay := b.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
		// 指数退避
		delay = time.Duration(float64(delay) * 1.5)
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}
