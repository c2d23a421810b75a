package service

import (
	"context"
	"time"

	"lifelink-backend/internal/metrics"

	"go.uber.org/zap"
)

// SweeperService moves stale pending entries to expired on a fixed
// interval, so abandoned donations and requests eventually drop out of
// every hospital's pending view.
type SweeperService struct {
	ledger   Ledger
	logger   *zap.Logger
	entryTTL time.Duration
	interval time.Duration
}

func NewSweeperService(ledger Ledger, logger *zap.Logger, entryTTL, interval time.Duration) *SweeperService {
	return &SweeperService{
		ledger:   ledger,
		logger:   logger,
		entryTTL: entryTTL,
		interval: interval,
	}
}

// Start runs the sweep loop until the context is cancelled
func (s *SweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started",
		zap.Duration("entry_ttl", s.entryTTL),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SweeperService) sweep() {
	cutoff := time.Now().UTC().Add(-s.entryTTL)
	swept, err := s.ledger.ExpirePendingOlderThan(cutoff)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		metrics.EntriesExpiredTotal.Add(float64(swept))
		s.logger.Info("expired stale pending entries", zap.Int64("count", swept))
	}
}
