package statsdb

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/engine"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQuery(t *testing.T) {
	s := openStore(t)
	start := time.Unix(1700000000, 0)
	id, err := s.BeginRun("pipeline", start)
	require.NoError(t, err)

	last := start.Add(time.Second)
	stats := []engine.WorkStats{
		{Node: "sink", NumWorkCalls: 3, BytesConsumed: 40, TotalWorkTime: 5 * time.Millisecond, TimeLastWork: last},
		{Node: "src", NumWorkCalls: 2, BytesProduced: 40, LabelsProduced: 1, SlotCalls: 1},
	}
	require.NoError(t, s.Record(id, stats))

	// a later snapshot replaces the earlier one
	stats[0].NumWorkCalls = 4
	require.NoError(t, s.Record(id, stats))

	got, err := s.Stats(id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sink", got[0].Node)
	assert.Equal(t, uint64(4), got[0].NumWorkCalls)
	assert.Equal(t, uint64(40), got[0].BytesConsumed)
	assert.Equal(t, 5*time.Millisecond, got[0].TotalWorkTime)
	assert.True(t, last.Equal(got[0].TimeLastWork))
	assert.Equal(t, "src", got[1].Node)
	assert.Equal(t, uint64(1), got[1].SlotCalls)
	assert.True(t, got[1].TimeLastWork.IsZero())

	require.NoError(t, s.EndRun(id, start.Add(2*time.Second)))
	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "pipeline", runs[0].Graph)
	assert.True(t, start.Equal(runs[0].Started))
	assert.Equal(t, 2*time.Second, runs[0].Ended.Sub(runs[0].Started))
}

func TestUnknownRun(t *testing.T) {
	s := openStore(t)
	_, err := s.Stats(42)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.EndRun(42, time.Now()), ErrRunNotFound)
}

func TestRunsNewestFirst(t *testing.T) {
	s := openStore(t)
	first, err := s.BeginRun("a", time.Now())
	require.NoError(t, err)
	second, err := s.BeginRun("b", time.Now())
	require.NoError(t, err)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
	assert.True(t, runs[0].Ended.IsZero())
}

func TestWatchRecordsFinalSnapshot(t *testing.T) {
	s := openStore(t)
	id, err := s.BeginRun("watch", time.Now())
	require.NoError(t, err)

	var calls atomic.Uint64
	snapshot := func() []engine.WorkStats {
		return []engine.WorkStats{{Node: "n", NumWorkCalls: calls.Add(1)}}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, id, time.Millisecond, snapshot) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got, err := s.Stats(id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, calls.Load(), got[0].NumWorkCalls)
}
