package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	waitFor = 2 * time.Second
	pollAt  = 5 * time.Millisecond
)

// blockUntilWaiting waits until the loop has armed its interval timer.
func blockUntilWaiting(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "loop never started waiting")
}

func startSweeper(t *testing.T, stores *Stores, clock *clockwork.FakeClock, opts ...Option) *Sweeper {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	s, err := New(1, stores, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		if s.Running() {
			_ = s.Stop()
		}
	})
	return s
}

func TestLoop_NoSweepBeforeInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, _, _ := testStores()
	startSweeper(t, stores, clock)

	blockUntilWaiting(t, clock)
	clock.Advance(999 * time.Millisecond)
	assert.Never(t, func() bool { return handles.listCount() > 0 }, 50*time.Millisecond, pollAt)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return handles.listCount() == 1 }, waitFor, pollAt)
}

func TestLoop_SweepsAreSpacedAndSequential(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, _, codes := testStores()

	type span struct{ start, end time.Time }
	var (
		mu    sync.Mutex
		spans []span
	)
	handles.onList = func() {
		mu.Lock()
		spans = append(spans, span{start: clock.Now()})
		mu.Unlock()
	}
	codes.onList = func() {
		// the last store is slow
		clock.Advance(500 * time.Millisecond)
		mu.Lock()
		spans[len(spans)-1].end = clock.Now()
		mu.Unlock()
	}
	startSweeper(t, stores, clock)

	for i := 1; i <= 2; i++ {
		blockUntilWaiting(t, clock)
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return codes.listCount() == i }, waitFor, pollAt)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, spans, 2)
	assert.GreaterOrEqual(t, spans[1].start.Sub(spans[0].start), time.Second)
	assert.False(t, spans[1].start.Before(spans[0].end), "second sweep started before the first finished")
	assert.Equal(t, t0.Add(time.Second), spans[0].start)
	assert.Equal(t, t0.Add(2500*time.Millisecond), spans[1].start)
}

func TestLoop_FailedTickDoesNotStopLoop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, refresh, codes := testStores()
	handles.add(testRecord{id: "h1", exp: t0.Add(-time.Hour)})
	refresh.add(testRecord{id: "r1", exp: t0.Add(-time.Hour)})
	codes.add(testRecord{id: "c1", exp: t0.Add(-time.Hour)})
	refresh.failLists = 1
	startSweeper(t, stores, clock)

	blockUntilWaiting(t, clock)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return refresh.listCount() == 1 }, waitFor, pollAt)

	// the loop is waiting again, so the first tick is over
	blockUntilWaiting(t, clock)
	assert.Equal(t, 0, codes.listCount())
	assert.Equal(t, []string{"h1"}, handles.deleted())
	assert.True(t, refresh.has("r1"))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return codes.listCount() == 1 }, waitFor, pollAt)
	assert.Equal(t, []string{"r1"}, refresh.deleted())
	assert.Equal(t, []string{"c1"}, codes.deleted())
}

func TestLoop_StopDuringWait(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, _, _ := testStores()
	s := startSweeper(t, stores, clock, WithLogger(zap.New(core).Sugar()))

	blockUntilWaiting(t, clock)
	require.NoError(t, s.Stop())
	require.Eventually(t, func() bool {
		return logs.FilterMessage("token sweeper stopped").Len() == 1
	}, waitFor, pollAt)

	clock.Advance(10 * time.Second)
	assert.Never(t, func() bool { return handles.listCount() > 0 }, 50*time.Millisecond, pollAt)
}

func TestLoop_StopDoesNotInterruptSweep(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, refresh, codes := testStores()
	handles.add(testRecord{id: "h1", exp: t0.Add(-time.Hour)})

	entered := make(chan struct{})
	release := make(chan struct{})
	handles.onDelete = func(context.Context) {
		close(entered)
		<-release
	}
	s := startSweeper(t, stores, clock)

	blockUntilWaiting(t, clock)
	clock.Advance(time.Second)
	<-entered

	require.NoError(t, s.Stop())
	close(release)

	require.Eventually(t, func() bool { return codes.listCount() == 1 }, waitFor, pollAt)
	assert.Equal(t, []string{"h1"}, handles.deleted())
	assert.Equal(t, 1, refresh.listCount())

	handles.mu.Lock()
	deleteErr := handles.ctxs[0].Err()
	handles.mu.Unlock()
	assert.NoError(t, deleteErr, "in-flight delete saw a cancelled context")

	// no further ticks once the in-flight sweep has returned
	clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return handles.listCount() > 1 }, 50*time.Millisecond, pollAt)
}

func TestLoop_ParentContextCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, _, _ := testStores()
	s, err := New(1, stores, WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop() })

	blockUntilWaiting(t, clock)
	cancel()
	// give the loop a moment to observe the cancellation
	time.Sleep(20 * time.Millisecond)
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return handles.listCount() > 0 }, 50*time.Millisecond, pollAt)
}

func TestLoop_DeadlineStopsLoop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := clockwork.NewFakeClockAt(t0)
	stores, handles, _, _ := testStores()
	s, err := New(1, stores, WithClock(clock), WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop() })

	require.Eventually(t, func() bool {
		return logs.FilterMessage("token sweeper wait interrupted, stopping").Len() == 1
	}, waitFor, pollAt)
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return handles.listCount() > 0 }, 50*time.Millisecond, pollAt)
}
