package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	mu    sync.Mutex
	count int
	block chan struct{}
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.err
}

func (s *countingSweeper) sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func fixedInterval(minutes int) IntervalSource {
	return func(context.Context) (int, error) {
		return minutes, nil
	}
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero defaults to hourly", 0, 60},
		{"negative defaults to hourly", -5, 60},
		{"minimum", 1, 1},
		{"sub-hourly passes through", 59, 59},
		{"hourly passes through", 60, 60},
		{"above hourly passes through", 61, 61},
		{"daily passes through", 1440, 1440},
		{"above daily is capped", 1500, 1440},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampInterval(tt.in))
		})
	}
}

func TestCadenceSpec(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{1, "*/1 * * * *"},
		{15, "*/15 * * * *"},
		{59, "*/59 * * * *"},
		{60, "0 * * * *"},
		{61, "0 */1 * * *"},
		{120, "0 */2 * * *"},
		{1440, "0 */24 * * *"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cadenceSpec(tt.minutes), "minutes=%d", tt.minutes)
	}
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, fixedInterval(60), nil)
	ctx := context.Background()

	assert.False(t, s.IsRunning())
	assert.Equal(t, 0, s.CurrentInterval())

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Equal(t, 60, s.CurrentInterval())

	// second start is a no-op
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, 0, s.CurrentInterval())

	// second stop is a no-op
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestScheduler_RestartRereadsInterval(t *testing.T) {
	var mu sync.Mutex
	minutes := 60
	source := func(context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return minutes, nil
	}

	s := NewScheduler(&countingSweeper{}, source, nil)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, 60, s.CurrentInterval())

	mu.Lock()
	minutes = 30
	mu.Unlock()

	require.NoError(t, s.Restart(ctx))
	assert.True(t, s.IsRunning())
	assert.Equal(t, 30, s.CurrentInterval())

	s.Stop()
}

func TestScheduler_ClampsSourceInterval(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, fixedInterval(10000), nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 1440, s.CurrentInterval())
}

func TestScheduler_StartDefaultsWhenSourceFails(t *testing.T) {
	source := func(context.Context) (int, error) {
		return 0, assert.AnError
	}
	s := NewScheduler(&countingSweeper{}, source, nil)

	// an unreadable settings store must not keep the scheduler down
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Equal(t, DefaultIntervalMinutes, s.CurrentInterval())
}

func TestScheduler_NilSourceDefaultsHourly(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 60, s.CurrentInterval())
}

func TestRunSweep_SuppressesOverlap(t *testing.T) {
	sweeper := &countingSweeper{block: make(chan struct{})}
	s := NewScheduler(sweeper, fixedInterval(1), nil)

	done := make(chan struct{})
	go func() {
		s.runSweep()
		close(done)
	}()

	// wait until the first sweep is holding the lock
	require.Eventually(t, func() bool { return sweeper.sweeps() == 1 },
		time.Second, 5*time.Millisecond)

	// an overlapping tick is dropped, not queued
	s.runSweep()
	assert.Equal(t, 1, sweeper.sweeps())

	close(sweeper.block)
	<-done

	s.runSweep()
	assert.Equal(t, 2, sweeper.sweeps())
}

func TestRunSweep_ErrorDoesNotPropagate(t *testing.T) {
	sweeper := &countingSweeper{err: assert.AnError}
	s := NewScheduler(sweeper, fixedInterval(60), nil)

	// must not panic and must leave the scheduler usable
	s.runSweep()
	s.runSweep()
	assert.Equal(t, 2, sweeper.sweeps())
}

type panickingSweeper struct{}

func (panickingSweeper) Sweep(context.Context) error {
	panic("lead repository went away")
}

func TestRunSweep_RecoversPanic(t *testing.T) {
	s := NewScheduler(panickingSweeper{}, fixedInterval(60), nil)

	assert.NotPanics(t, func() { s.runSweep() })
	// the sweep mutex was released despite the panic
	assert.NotPanics(t, func() { s.runSweep() })
}
