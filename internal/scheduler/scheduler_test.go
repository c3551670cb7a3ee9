package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	runs atomic.Int32
}

func (c *countingSweeper) SweepStale(context.Context) (int64, error) {
	c.runs.Add(1)
	return 0, nil
}

type slowSweeper struct {
	clock *clockwork.FakeClock
	took  time.Duration
}

func (s *slowSweeper) SweepStale(context.Context) (int64, error) {
	s.clock.Advance(s.took)
	return 3, nil
}

func TestPresenceSweep(t *testing.T) {
	t.Run("should report the run duration from the scheduler clock", func(t *testing.T) {
		req := require.New(t)
		var buf bytes.Buffer
		clock := clockwork.NewFakeClock()
		s, err := New(clock, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
		req.NoError(err)
		buf.Reset()

		s.sweepPresence(time.Minute, &slowSweeper{clock: clock, took: 2 * time.Second})

		var line map[string]any
		req.NoError(json.Unmarshal(buf.Bytes(), &line))
		req.Equal("Finished scheduled task", line["msg"])
		req.Equal(float64(3), line["swept"])
		req.Equal(float64(2*time.Second), line["duration"])
	})

	t.Run("should run the sweeper repeatedly until stopped", func(t *testing.T) {
		req := require.New(t)
		s, err := New(clockwork.NewRealClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		req.NoError(err)

		sweeper := &countingSweeper{}
		req.NoError(s.AddPresenceSweep(20*time.Millisecond, sweeper))
		s.Start()

		req.Eventually(func() bool { return sweeper.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
		req.NoError(s.Stop())

		after := sweeper.runs.Load()
		time.Sleep(60 * time.Millisecond)
		req.Equal(after, sweeper.runs.Load())
	})

	t.Run("should tolerate stop without start", func(t *testing.T) {
		s, err := New(clockwork.NewRealClock(), nil)
		require.NoError(t, err)
		require.NoError(t, s.Stop())
	})
}
