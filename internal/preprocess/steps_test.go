package preprocess

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickypin/capmaster/internal/capture"
)

func timeRange(first, last float64) capture.TimeRange {
	return capture.TimeRange{FirstTS: first, LastTS: last}
}

func TestAutomaticSteps(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "all enabled",
			cfg: Config{
				ArchiveOriginal:  true,
				TimeAlignEnabled: true,
				DedupEnabled:     true,
				OnewayEnabled:    true,
			},
			want: []string{StepArchiveOriginal, StepTimeAlign, StepDedup, StepOneway},
		},
		{
			name: "defaults skip archive",
			cfg:  defaultConfig(),
			want: []string{StepTimeAlign, StepDedup, StepOneway},
		},
		{
			name: "dedup only",
			cfg:  Config{DedupEnabled: true},
			want: []string{StepDedup},
		},
		{
			name: "nothing enabled",
			cfg:  Config{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, automaticSteps(tt.cfg))
		})
	}
}

func TestFuseSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  []string
	}{
		{
			name:  "adjacent time-align dedup fuse",
			steps: []string{StepArchiveOriginal, StepTimeAlign, StepDedup, StepOneway},
			want:  []string{StepArchiveOriginal, StepTimeAlignDedup, StepOneway},
		},
		{
			name:  "non-adjacent pair stays unfused",
			steps: []string{StepTimeAlign, StepOneway, StepDedup},
			want:  []string{StepTimeAlign, StepOneway, StepDedup},
		},
		{
			name:  "dedup before time-align stays unfused",
			steps: []string{StepDedup, StepTimeAlign},
			want:  []string{StepDedup, StepTimeAlign},
		},
		{
			name:  "empty",
			steps: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fuseSteps(tt.steps))
		})
	}
}

func TestOverlapWindow(t *testing.T) {
	ranges := []rangedFile{
		{path: "a", tr: timeRange(100, 200)},
		{path: "b", tr: timeRange(150, 250)},
	}
	start, end := overlapWindow(ranges)
	assert.Equal(t, 150.0, start)
	assert.Equal(t, 200.0, end)

	disjoint := []rangedFile{
		{path: "a", tr: timeRange(0, 10)},
		{path: "b", tr: timeRange(20, 30)},
	}
	start, end = overlapWindow(disjoint)
	assert.False(t, start < end)
}

func TestParallelMapPreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	got, err := parallelMap(context.Background(), 4, items, func(_ context.Context, v int) (int, error) {
		return v * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 40, 30, 20, 10}, got)
}

func TestParallelMapPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := parallelMap(context.Background(), 2, []int{1, 2, 3}, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestStemOf(t *testing.T) {
	assert.Equal(t, "capture1", stemOf("/data/capture1.pcap"))
	assert.Equal(t, "capture1", stemOf("capture1.pcapng"))
	assert.Equal(t, "a.b", stemOf("/x/a.b.pcap"))
}

func TestFinalOutputPath(t *testing.T) {
	got := finalOutputPath("/out", "/in/site-a.pcapng")
	assert.Equal(t, "/out/site-a.ready.pcapng", got)
}
