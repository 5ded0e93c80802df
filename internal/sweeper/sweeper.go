// Package sweeper periodically removes expired refresh tokens, authorization
// codes and token handles from their stores.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultIntervalSeconds is the spacing between sweeps when none is configured.
const DefaultIntervalSeconds = 60

var (
	ErrInvalidConfiguration = errors.New("invalid sweeper configuration")
	ErrAlreadyStarted       = errors.New("sweeper already started")
	ErrNotStarted           = errors.New("sweeper not started")
)

// Sweeper owns the background sweep loop.
//
// Start and Stop are not synchronised with each other; call them from a
// single goroutine.
type Sweeper struct {
	interval time.Duration
	stores   []Store
	clock    clockwork.Clock
	logger   *zap.SugaredLogger

	// cancel is non-nil while the loop is running.
	cancel  context.CancelFunc
	running atomic.Bool
}

// Option customises a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used by the loop.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New validates the configuration and returns a stopped Sweeper.
// intervalSeconds must be at least 1 and stores must name all three collaborators.
func New(intervalSeconds int, stores *Stores, opts ...Option) (*Sweeper, error) {
	if intervalSeconds < 1 {
		return nil, fmt.Errorf("%w: interval must be at least 1 second, got %d", ErrInvalidConfiguration, intervalSeconds)
	}
	if stores == nil {
		return nil, fmt.Errorf("%w: stores are required", ErrInvalidConfiguration)
	}
	if !stores.complete() {
		return nil, fmt.Errorf("%w: token handle, refresh token and authorization code stores are required", ErrInvalidConfiguration)
	}
	s := &Sweeper{
		interval: time.Duration(intervalSeconds) * time.Second,
		stores:   stores.ordered(),
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the sweep loop and returns without waiting for it.
// The loop also ends when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)
	go s.run(loopCtx)
	s.logger.Infow("token sweeper started", "interval", s.interval)
	return nil
}

// Stop signals the loop to exit. It does not wait for a sweep in progress.
func (s *Sweeper) Stop() error {
	if s.cancel == nil {
		return ErrNotStarted
	}
	s.cancel()
	s.cancel = nil
	s.running.Store(false)
	s.logger.Infow("token sweeper stop requested")
	return nil
}

// Running reports whether Start has been called without a matching Stop.
// It is safe to call from any goroutine.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}
