package precompute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrasol/internal/astro"
	"terrasol/internal/exposure"
	"terrasol/internal/geo"
	"terrasol/internal/types"
)

var gothenburg = geo.Point{Lat: 57.7089, Lon: 11.9746}

func squareAt(p geo.Point, sideM float64) geo.Polygon {
	ne := geo.DestinationPoint(geo.DestinationPoint(p, sideM, 0), sideM, 90)
	return geo.Polygon{
		p,
		{Lat: p.Lat, Lon: ne.Lon},
		ne,
		{Lat: ne.Lat, Lon: p.Lon},
	}
}

// --- fakes ---

type fakePatioSource struct {
	patios    []types.Patio
	failBuild map[string]bool
	panicOn   map[string]bool
	listErr   error
}

func (f *fakePatioSource) ListPatios(_ context.Context) ([]types.Patio, error) {
	return f.patios, f.listErr
}

func (f *fakePatioSource) NearbyBuildings(_ context.Context, patio types.Patio) ([]types.Building, error) {
	if f.panicOn[patio.ID] {
		panic("building index corrupted")
	}
	if f.failBuild[patio.ID] {
		return nil, errors.New("building provider down")
	}
	return nil, nil
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	status    types.ScheduleStatus
	claimable bool
	progress  []int
	errMsg    string
	retries   int
	resets    int
}

func (f *fakeScheduleStore) Upsert(_ context.Context, targetDate time.Time) (*types.PrecomputationSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == "" {
		f.status = types.ScheduleScheduled
	}
	return &types.PrecomputationSchedule{TargetDate: targetDate, Status: f.status}, nil
}

func (f *fakeScheduleStore) TryStart(_ context.Context, _ time.Time, _ string, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.claimable || f.status != types.ScheduleScheduled {
		return false, nil
	}
	f.status = types.ScheduleRunning
	return true, nil
}

func (f *fakeScheduleStore) UpdateProgress(_ context.Context, _ time.Time, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, processed)
	return nil
}

func (f *fakeScheduleStore) Complete(_ context.Context, _ time.Time, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = types.ScheduleCompleted
	return nil
}

func (f *fakeScheduleStore) Fail(_ context.Context, _ time.Time, _ int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = types.ScheduleFailed
	f.errMsg = errMsg
	f.retries++
	return nil
}

func (f *fakeScheduleStore) Cancel(_ context.Context, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.IsTerminal() {
		return false, nil
	}
	f.status = types.ScheduleCancelled
	return true, nil
}

func (f *fakeScheduleStore) ResetForRetry(_ context.Context, _ time.Time, maxRetries int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != types.ScheduleFailed || f.retries > maxRetries {
		return false, nil
	}
	f.status = types.ScheduleScheduled
	f.resets++
	return true, nil
}

type fakeBatchWriter struct {
	mu      sync.Mutex
	batches [][]types.PrecomputedSunExposure
}

func (f *fakeBatchWriter) SaveBatch(_ context.Context, rows []types.PrecomputedSunExposure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, rows)
	return nil
}

func (f *fakeBatchWriter) totalRows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type fakeRequeuer struct {
	mu    sync.Mutex
	dates []time.Time
}

func (f *fakeRequeuer) EnqueueDate(_ context.Context, targetDate time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, targetDate)
	return nil
}

// --- tests ---

func patioN(id string, offsetM float64) types.Patio {
	origin := geo.DestinationPoint(gothenburg, offsetM, 90)
	return types.Patio{ID: id, Footprint: squareAt(origin, 10), PolygonQuality: 1.0}
}

func newTestRunner(src *fakePatioSource, sched *fakeScheduleStore, writer *fakeBatchWriter, requeue Requeuer) *Runner {
	calc := exposure.NewCalculator(astro.NewCalculator(nil), nil, nil)
	clock := types.FixedClock{T: time.Date(2025, 6, 21, 2, 0, 0, 0, time.UTC)}
	r := NewRunner(src, sched, writer, calc, nil, requeue, nil, clock, nil)
	r.StepMinutes = 120 // coarse grid keeps tests fast
	r.Concurrency = 2
	return r
}

func TestRunCompletesAndWritesAllSlots(t *testing.T) {
	src := &fakePatioSource{patios: []types.Patio{patioN("p1", 0), patioN("p2", 100), patioN("p3", 200)}}
	sched := &fakeScheduleStore{claimable: true}
	writer := &fakeBatchWriter{}

	runner := newTestRunner(src, sched, writer, nil)
	date := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

	stats, err := runner.Run(context.Background(), date, "job-1")
	require.NoError(t, err)

	assert.Equal(t, types.ScheduleCompleted, sched.status)
	assert.Equal(t, 3, stats.PatiosProcessed)
	assert.Equal(t, 0, stats.PatioFailures)

	// 24h at 120-minute steps is 12 slots per patio, one batch per patio.
	assert.Len(t, writer.batches, 3)
	assert.Equal(t, 36, writer.totalRows())
	assert.Equal(t, 36, stats.RowsWritten)

	for _, row := range writer.batches[0] {
		assert.Equal(t, date, row.Date)
		assert.Equal(t, types.ComputationVersion, row.ComputationVersion)
		assert.Equal(t, date.AddDate(0, 0, 1).Add(runner.Retention), row.ExpiresAt)
	}
}

func TestRunDuplicateStartRejected(t *testing.T) {
	src := &fakePatioSource{patios: []types.Patio{patioN("p1", 0)}}
	sched := &fakeScheduleStore{claimable: true, status: types.ScheduleRunning}
	writer := &fakeBatchWriter{}

	runner := newTestRunner(src, sched, writer, nil)

	_, err := runner.Run(context.Background(), time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), "job-2")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictRunActive, appErr.Code)
	assert.Empty(t, writer.batches, "losing starter must not write anything")
}

func TestRunPatioFailureIsolated(t *testing.T) {
	src := &fakePatioSource{
		patios:    []types.Patio{patioN("p1", 0), patioN("p2", 100), patioN("p3", 200)},
		failBuild: map[string]bool{"p2": true},
	}
	sched := &fakeScheduleStore{claimable: true}
	writer := &fakeBatchWriter{}
	requeue := &fakeRequeuer{}

	runner := newTestRunner(src, sched, writer, requeue)
	date := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

	stats, err := runner.Run(context.Background(), date, "job-3")
	require.Error(t, err, "a partial run finishes failed")

	assert.Equal(t, 2, stats.PatiosProcessed, "healthy patios still complete")
	assert.Equal(t, 1, stats.PatioFailures)
	assert.Equal(t, types.ScheduleScheduled, sched.status, "failed run reset for retry")
	assert.Contains(t, sched.errMsg, "1 of 3 patios failed")

	require.Len(t, requeue.dates, 1)
	assert.Equal(t, date, requeue.dates[0])
}

func TestRunPanicIsolated(t *testing.T) {
	src := &fakePatioSource{
		patios:  []types.Patio{patioN("p1", 0), patioN("p2", 100)},
		panicOn: map[string]bool{"p1": true},
	}
	sched := &fakeScheduleStore{claimable: true}
	writer := &fakeBatchWriter{}

	runner := newTestRunner(src, sched, writer, nil)

	stats, err := runner.Run(context.Background(), time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), "job-4")
	require.Error(t, err)
	assert.Equal(t, 1, stats.PatiosProcessed)
	assert.Equal(t, 1, stats.PatioFailures)
	assert.Equal(t, types.ScheduleFailed, sched.status)
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	src := &fakePatioSource{
		patios:    []types.Patio{patioN("p1", 0)},
		failBuild: map[string]bool{"p1": true},
	}
	sched := &fakeScheduleStore{claimable: true, retries: 10}
	writer := &fakeBatchWriter{}
	requeue := &fakeRequeuer{}

	runner := newTestRunner(src, sched, writer, requeue)

	_, err := runner.Run(context.Background(), time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), "job-5")
	require.Error(t, err)

	assert.Equal(t, types.ScheduleFailed, sched.status, "exhausted budget stays failed")
	assert.Empty(t, requeue.dates)
}

func TestRunCancellation(t *testing.T) {
	src := &fakePatioSource{patios: []types.Patio{patioN("p1", 0), patioN("p2", 100)}}
	sched := &fakeScheduleStore{claimable: true}
	writer := &fakeBatchWriter{}

	runner := newTestRunner(src, sched, writer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), "job-6")
	require.Error(t, err)
	assert.Equal(t, types.ScheduleCancelled, sched.status)
}

func TestRunProgressUpdates(t *testing.T) {
	patios := make([]types.Patio, 0, 25)
	for i := 0; i < 25; i++ {
		patios = append(patios, patioN(string(rune('a'+i)), float64(i*50)))
	}
	src := &fakePatioSource{patios: patios}
	sched := &fakeScheduleStore{claimable: true}
	writer := &fakeBatchWriter{}

	runner := newTestRunner(src, sched, writer, nil)
	runner.StepMinutes = 360

	_, err := runner.Run(context.Background(), time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), "job-7")
	require.NoError(t, err)

	// 25 patios at an update every 10 gives two interim progress reports.
	assert.Len(t, sched.progress, 2)
	assert.Equal(t, types.ScheduleCompleted, sched.status)
}
