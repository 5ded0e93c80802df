package sweeper

import (
	"context"
	"errors"
)

// run waits one interval, sweeps, and repeats until ctx is done.
func (s *Sweeper) run(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			s.exit(err)
			return
		}
		if err := s.wait(ctx); err != nil {
			s.exit(err)
			return
		}
		if err := ctx.Err(); err != nil {
			s.exit(err)
			return
		}
		// a sweep in flight finishes even if Stop is called meanwhile
		s.tick(context.WithoutCancel(ctx))
	}
}

// wait blocks for one interval or until ctx is done.
func (s *Sweeper) wait(ctx context.Context) error {
	timer := s.clock.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func (s *Sweeper) exit(err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Infow("token sweeper stopped")
		return
	}
	s.logger.Warnw("token sweeper wait interrupted, stopping", "err", err)
}
