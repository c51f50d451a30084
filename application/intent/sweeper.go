package intent

import (
	"context"
	"fmt"
	"time"

	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// TokenSweeper periodically deletes preview tokens that settled longer ago
// than the retention window. Pending tokens inside their TTL are never touched.
type TokenSweeper struct {
	engine    *Engine
	interval  time.Duration
	retention time.Duration
}

func NewTokenSweeper(engine *Engine, interval, retention time.Duration) (*TokenSweeper, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	if retention < 0 {
		return nil, fmt.Errorf("retention must not be negative")
	}
	return &TokenSweeper{engine: engine, interval: interval, retention: retention}, nil
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried on
// the next tick.
func (s *TokenSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.engine.PruneTokens(ctx, s.retention); err != nil {
				logger.Error("Token sweep failed", zap.Error(err))
			}
		}
	}
}
