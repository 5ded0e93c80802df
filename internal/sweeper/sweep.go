package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/utilities"
)

// tick runs a single sweep and absorbs whatever it returns.
func (s *Sweeper) tick(ctx context.Context) {
	start := s.clock.Now()
	logger := s.logger.With("run_id", utilities.NewKSUID())

	deleted := make(map[string]int, len(s.stores))
	defer func() {
		elapsed := s.clock.Since(start)
		tickDuration.Observe(elapsed.Seconds())
		if r := recover(); r != nil {
			ticksTotal.WithLabelValues(resultFailed).Inc()
			logger.Errorw("token sweep panicked", "panic", r, "deleted", deleted, "duration", elapsed)
		}
	}()

	err := s.sweep(ctx, start, deleted, logger)
	elapsed := s.clock.Since(start)
	if err != nil {
		ticksTotal.WithLabelValues(resultFailed).Inc()
		logger.Warnw("token sweep aborted", "err", err, "deleted", deleted, "duration", elapsed)
		return
	}
	ticksTotal.WithLabelValues(resultOK).Inc()
	logger.Infow("token sweep completed", "deleted", deleted, "duration", elapsed)
}

// sweep removes every record expired at cutoff, store by store. The first
// store error aborts the remaining stores. Counts are written to deleted as
// they happen so a partial sweep can still be reported.
func (s *Sweeper) sweep(ctx context.Context, cutoff time.Time, deleted map[string]int, logger *zap.SugaredLogger) error {
	for _, st := range s.stores {
		if err := s.sweepStore(ctx, st, cutoff, deleted, logger); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) sweepStore(ctx context.Context, st Store, cutoff time.Time, deleted map[string]int, logger *zap.SugaredLogger) error {
	name := st.Name()
	records, err := st.ListExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: list expired: %w", name, err)
	}
	deleted[name] = 0
	for _, r := range records {
		// identifiers are credentials; never log them
		if r.Expiry().After(cutoff) {
			logger.Debugw("store returned unexpired record, skipping", "store", name, "expires_at", r.Expiry())
			continue
		}
		if err := st.Delete(ctx, r.Identifier()); err != nil {
			return fmt.Errorf("%s: delete: %w", name, err)
		}
		deleted[name]++
		recordsDeleted.WithLabelValues(name).Inc()
	}
	if len(records) > 0 {
		logger.Debugw("store swept", "store", name, "listed", len(records), "deleted", deleted[name])
	}
	return nil
}
