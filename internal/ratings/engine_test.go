package ratings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStats struct {
	count   int
	average float64
	err     error
	calls   int
}

func (s *stubStats) Stats(_ context.Context, _ int64) (int, float64, error) {
	s.calls++
	return s.count, s.average, s.err
}

type recordedWrite struct {
	venueID int64
	average float64
	count   int
}

type stubWriter struct {
	err    error
	writes []recordedWrite
}

func (s *stubWriter) SetRating(_ context.Context, venueID int64, average float64, count int) error {
	s.writes = append(s.writes, recordedWrite{venueID, average, count})
	return s.err
}

func newTestEngine(stats *stubStats, writer *stubWriter) *Engine {
	return NewEngine(stats, writer, zap.NewNop().Sugar())
}

func TestRecomputeWritesMeanAndCount(t *testing.T) {
	stats := &stubStats{count: 3, average: 4.0}
	writer := &stubWriter{}

	newTestEngine(stats, writer).Recompute(context.Background(), 42)

	require.Len(t, writer.writes, 1)
	assert.Equal(t, int64(42), writer.writes[0].venueID)
	assert.InDelta(t, 4.0, writer.writes[0].average, 1e-6)
	assert.Equal(t, 3, writer.writes[0].count)
}

func TestRecomputeWritesSentinelWhenNoReviews(t *testing.T) {
	stats := &stubStats{count: 0, average: 0}
	writer := &stubWriter{}

	newTestEngine(stats, writer).Recompute(context.Background(), 7)

	require.Len(t, writer.writes, 1)
	assert.InDelta(t, DefaultAverage, writer.writes[0].average, 1e-6)
	assert.Equal(t, 0, writer.writes[0].count)
}

func TestRecomputeSkipsWriteWhenStatsFail(t *testing.T) {
	stats := &stubStats{err: errors.New("connection reset")}
	writer := &stubWriter{}

	newTestEngine(stats, writer).Recompute(context.Background(), 7)

	assert.Empty(t, writer.writes, "a failed read must not produce a write")
}

func TestRecomputeSwallowsWriteFailure(t *testing.T) {
	stats := &stubStats{count: 2, average: 4.5}
	writer := &stubWriter{err: errors.New("write refused")}

	// Must not panic or propagate: the triggering review mutation has
	// already committed.
	newTestEngine(stats, writer).Recompute(context.Background(), 7)

	assert.Equal(t, 1, stats.calls)
	require.Len(t, writer.writes, 1)
}

func TestRecomputeSequenceTracksMutations(t *testing.T) {
	stats := &stubStats{}
	writer := &stubWriter{}
	engine := newTestEngine(stats, writer)
	ctx := context.Background()

	// Reviews 5, 3, 4 accumulate, then the rating-3 review is removed.
	steps := []struct {
		count   int
		average float64
	}{
		{1, 5.0},
		{2, 4.0},
		{3, 4.0},
		{2, 4.5},
	}
	for _, step := range steps {
		stats.count = step.count
		stats.average = step.average
		engine.Recompute(ctx, 9)
	}

	require.Len(t, writer.writes, len(steps))
	last := writer.writes[len(writer.writes)-1]
	assert.Equal(t, 2, last.count)
	assert.InDelta(t, 4.5, last.average, 1e-6)

	// And the last review disappearing resets to the sentinel.
	stats.count = 0
	stats.average = 0
	engine.Recompute(ctx, 9)
	last = writer.writes[len(writer.writes)-1]
	assert.Equal(t, 0, last.count)
	assert.InDelta(t, DefaultAverage, last.average, 1e-6)
}
