package hybrid

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartReprobe launches a background loop that periodically re-attempts
// primary init while the primary is demoted, promoting it back on success.
// Without it a primary marked down at startup stays down for the process
// lifetime. The loop stops when ctx is canceled. No-op when there is no
// primary or interval is not positive.
func (s *Service) StartReprobe(ctx context.Context, interval time.Duration) {
	if s.primary == nil || interval <= 0 {
		return
	}
	go s.reprobeLoop(ctx, interval)
}

func (s *Service) reprobeLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.usePrimary.Load() {
				continue
			}

			pctx, cancel := s.opCtx(ctx)
			err := s.primary.Init(pctx)
			cancel()
			if err != nil {
				s.log.Debug("primary re-probe failed",
					zap.String("backend", s.primary.Name()), zap.Error(err))
				continue
			}

			s.usePrimary.Store(true)
			s.log.Info("primary backend recovered, promoted for reads and writes",
				zap.String("backend", s.primary.Name()))
		}
	}
}
