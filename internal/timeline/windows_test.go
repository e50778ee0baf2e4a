package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrasol/internal/types"
)

func timelineOf(stepMinutes int, pcts []float64, confidence float64) *types.SunExposureTimeline {
	start := time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)
	tl := &types.SunExposureTimeline{
		PatioID:     "patio-1",
		StepMinutes: stepMinutes,
		Range: types.TimeRange{
			Start: start,
			End:   start.Add(time.Duration(len(pcts)*stepMinutes) * time.Minute),
		},
	}
	for i, pct := range pcts {
		ts := start.Add(time.Duration(i*stepMinutes) * time.Minute)
		tl.Points = append(tl.Points, types.TimelinePoint{
			Timestamp: ts,
			Exposure: types.PatioSunExposure{
				PatioID:       "patio-1",
				Timestamp:     ts,
				ExposurePct:   pct,
				State:         types.ClassifyExposure(pct),
				ConfidencePct: confidence,
			},
		})
	}
	return tl
}

func TestExtractWindowsEmpty(t *testing.T) {
	assert.Nil(t, ExtractWindows(nil))
	assert.Nil(t, ExtractWindows(&types.SunExposureTimeline{}))
}

func TestExtractWindowsNoFavorablePoints(t *testing.T) {
	tl := timelineOf(10, []float64{10, 20, 5, 0}, 90)
	assert.Empty(t, ExtractWindows(tl))
}

func TestExtractWindowsSplitsOnShadedGap(t *testing.T) {
	// Two favorable runs separated by a shaded slot.
	tl := timelineOf(10, []float64{80, 85, 10, 75, 90}, 90)

	windows := ExtractWindows(tl)
	require.Len(t, windows, 2)

	for _, w := range windows {
		assert.Equal(t, 20*time.Minute, w.Duration())
		assert.Greater(t, w.AvgPct, types.SunnyThresholdPct)
	}
}

func TestExtractWindowsStats(t *testing.T) {
	tl := timelineOf(10, []float64{60, 95, 70}, 85)

	windows := ExtractWindows(tl)
	require.Len(t, windows, 1)
	w := windows[0]

	assert.Equal(t, tl.Points[0].Timestamp, w.Start)
	assert.Equal(t, tl.Points[2].Timestamp.Add(10*time.Minute), w.End)
	assert.Equal(t, 95.0, w.PeakPct)
	assert.Equal(t, tl.Points[1].Timestamp, w.PeakTime)
	assert.Equal(t, 60.0, w.MinPct)
	assert.Equal(t, 95.0, w.MaxPct)
	assert.InDelta(t, 75.0, w.AvgPct, 1e-9)
	assert.InDelta(t, 85.0, w.AvgConfidence, 1e-9)
}

func TestExtractWindowsQualityTiers(t *testing.T) {
	mk := func(n int, pct, conf float64) types.SunWindow {
		pcts := make([]float64, n)
		for i := range pcts {
			pcts[i] = pct
		}
		windows := ExtractWindows(timelineOf(10, pcts, conf))
		require.Len(t, windows, 1)
		return windows[0]
	}

	// 13 slots x 10 min = 130 min > 2h at 90% with high confidence.
	assert.Equal(t, types.WindowExcellent, mk(13, 90, 90).Quality)
	// Same run with low confidence drops out of Excellent.
	assert.Equal(t, types.WindowGood, mk(13, 90, 30).Quality)
	// 7 slots = 70 min > 1h at 65%.
	assert.Equal(t, types.WindowGood, mk(7, 65, 90).Quality)
	// 4 slots = 40 min > 30 min at 45%.
	assert.Equal(t, types.WindowFair, mk(4, 45, 90).Quality)
	// Short run stays Poor regardless of exposure.
	assert.Equal(t, types.WindowPoor, mk(2, 95, 90).Quality)
}

func TestExtractWindowsRecommendation(t *testing.T) {
	pcts := make([]float64, 13)
	for i := range pcts {
		pcts[i] = 90
	}
	windows := ExtractWindows(timelineOf(10, pcts, 90))
	require.Len(t, windows, 1)

	assert.True(t, windows[0].Recommended)
	assert.NotEmpty(t, windows[0].Reason)
}

func TestExtractWindowsOrderedByPriority(t *testing.T) {
	// A long strong run and a short weak one; the strong run must rank first
	// even though it occurs later in the day.
	tl := timelineOf(10, []float64{45, 45, 0, 0, 95, 95, 95, 95, 95, 95, 95}, 90)

	windows := ExtractWindows(tl)
	require.Len(t, windows, 2)
	assert.Greater(t, windows[0].AvgPct, windows[1].AvgPct)
	assert.GreaterOrEqual(t, windows[0].PriorityScore, windows[1].PriorityScore)
}
