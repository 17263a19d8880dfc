package application

import (
	"context"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/auth/domain"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
)

// RunSessionJanitor 定期清理过期会话，ctx 取消时返回 nil
func RunSessionJanitor(ctx context.Context, purger domain.ExpiredSessionPurger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn(ctx, "Failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "Expired sessions purged", "count", n)
			}
		}
	}
}
