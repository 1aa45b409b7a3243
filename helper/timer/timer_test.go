package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithTickerStopsOnError(t *testing.T) {
	errStop := errors.New("stop")
	var calls atomic.Int32

	err := RunWithTicker(context.Background(), &Interval{Duration: 5 * time.Millisecond}, func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			return errStop
		}
		return nil
	})

	require.ErrorIs(t, err, errStop)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRunWithTickerImmediate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	// A period long enough that only the immediate call can happen
	err := RunWithTicker(ctx, &Interval{Duration: time.Hour, Immediate: true}, func(ctx context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load())
}

func TestTickerJitterBounds(t *testing.T) {
	j := tickerJitter{MaxJitter: time.Second}
	for i := 0; i < 100; i++ {
		d := j.Jitter(time.Second)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 1500*time.Millisecond)
	}
	assert.Equal(t, time.Second, tickerJitter{}.Jitter(time.Second))
}
