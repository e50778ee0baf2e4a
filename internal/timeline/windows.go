package timeline

import (
	"fmt"
	"sort"
	"time"

	"terrasol/internal/types"
)

// Window quality thresholds. A window must clear both the average exposure
// and duration bars for a tier; Excellent additionally requires high average
// confidence.
const (
	excellentMinAvgPct  = 80.0
	excellentMinMinutes = 120
	goodMinAvgPct       = 60.0
	goodMinMinutes      = 60
	fairMinAvgPct       = 40.0
	fairMinMinutes      = 30
)

// ExtractWindows groups contiguous favorable (Sunny or Partial) points into
// sun windows, ranked by priority score descending. A timeline with no
// favorable points yields nil.
func ExtractWindows(tl *types.SunExposureTimeline) []types.SunWindow {
	if tl == nil || len(tl.Points) == 0 {
		return nil
	}

	step := time.Duration(tl.StepMinutes) * time.Minute

	var windows []types.SunWindow
	var run []types.TimelinePoint
	flush := func() {
		if len(run) > 0 {
			windows = append(windows, buildWindow(tl.PatioID, run, step))
			run = nil
		}
	}

	for _, p := range tl.Points {
		if p.Exposure.State.IsFavorable() {
			run = append(run, p)
		} else {
			flush()
		}
	}
	flush()

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].PriorityScore > windows[j].PriorityScore
	})
	return windows
}

func buildWindow(patioID string, run []types.TimelinePoint, step time.Duration) types.SunWindow {
	w := types.SunWindow{
		PatioID: patioID,
		Start:   run[0].Timestamp,
		End:     run[len(run)-1].Timestamp.Add(step),
		MinPct:  run[0].Exposure.ExposurePct,
	}

	var sumPct, sumConf float64
	for _, p := range run {
		pct := p.Exposure.ExposurePct
		sumPct += pct
		sumConf += p.Exposure.ConfidencePct
		if pct > w.MaxPct {
			w.MaxPct = pct
			w.PeakPct = pct
			w.PeakTime = p.Timestamp
		}
		if pct < w.MinPct {
			w.MinPct = pct
		}
	}
	w.AvgPct = sumPct / float64(len(run))
	w.AvgConfidence = sumConf / float64(len(run))

	w.Quality = classifyWindow(w.AvgPct, w.Duration(), w.AvgConfidence)
	w.Recommended = w.Quality == types.WindowExcellent || w.Quality == types.WindowGood
	if w.Recommended {
		w.Reason = fmt.Sprintf("%.0f%% average sun for %s", w.AvgPct, w.Duration())
	}
	w.PriorityScore = priorityScore(w)

	return w
}

func classifyWindow(avgPct float64, dur time.Duration, avgConfidence float64) types.WindowQuality {
	minutes := dur.Minutes()
	switch {
	case avgPct > excellentMinAvgPct && minutes > excellentMinMinutes && avgConfidence >= types.ConfidenceHighMinPct:
		return types.WindowExcellent
	case avgPct > goodMinAvgPct && minutes > goodMinMinutes:
		return types.WindowGood
	case avgPct > fairMinAvgPct && minutes > fairMinMinutes:
		return types.WindowFair
	default:
		return types.WindowPoor
	}
}

// priorityScore ranks windows for display: exposure dominates, duration and
// confidence break ties. Duration saturates at four hours.
func priorityScore(w types.SunWindow) float64 {
	durScore := w.Duration().Minutes() / 240.0
	if durScore > 1 {
		durScore = 1
	}
	return 0.5*w.AvgPct + 0.2*w.PeakPct + 20.0*durScore + 0.1*w.AvgConfidence
}
