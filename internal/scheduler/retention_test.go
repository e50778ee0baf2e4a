package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrasol/internal/types"
)

type fakeExpiredStore struct {
	expired  []types.PrecomputedSunExposure
	listErr  error
	purgeErr error
}

func (f *fakeExpiredStore) ListExpired(_ context.Context, _ time.Time, limit int) ([]types.PrecomputedSunExposure, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.expired) {
		limit = len(f.expired)
	}
	return f.expired[:limit], nil
}

func (f *fakeExpiredStore) PurgeExpired(_ context.Context, _ time.Time, limit int) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	if limit > len(f.expired) {
		limit = len(f.expired)
	}
	f.expired = f.expired[limit:]
	return int64(limit), nil
}

type fakeSink struct {
	objects  map[string][]byte
	storeErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{objects: map[string][]byte{}}
}

func (f *fakeSink) Store(_ context.Context, key string, data []byte) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.objects[key] = data
	return nil
}

func expiredRows(n int) []types.PrecomputedSunExposure {
	base := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
	rows := make([]types.PrecomputedSunExposure, n)
	for i := range rows {
		rows[i] = types.PrecomputedSunExposure{
			PatioID:   "p1",
			Timestamp: base.Add(time.Duration(i) * 10 * time.Minute),
			ExpiresAt: base.AddDate(0, 0, 2),
			State:     types.StateSunny,
		}
	}
	return rows
}

func newTestRetention(store ExpiredStore, sink ArchiveSink) *RetentionService {
	clock := types.FixedClock{T: time.Date(2025, 6, 21, 4, 0, 0, 0, time.UTC)}
	svc := NewRetentionService(store, sink, clock, nil)
	svc.BatchSize = 10
	return svc
}

func TestSweepArchivesAndPurgesInBatches(t *testing.T) {
	store := &fakeExpiredStore{expired: expiredRows(25)}
	sink := newFakeSink()
	svc := newTestRetention(store, sink)

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, stats.RowsArchived)
	assert.Equal(t, int64(25), stats.RowsPurged)
	assert.Equal(t, 3, stats.Batches)
	assert.Len(t, sink.objects, 3)
	assert.Empty(t, store.expired, "all expired rows drained")
}

func TestSweepArchiveIsDecompressibleJSON(t *testing.T) {
	store := &fakeExpiredStore{expired: expiredRows(5)}
	sink := newFakeSink()
	svc := newTestRetention(store, sink)

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.objects, 1)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	for _, compressed := range sink.objects {
		payload, err := dec.DecodeAll(compressed, nil)
		require.NoError(t, err)

		var rows []types.PrecomputedSunExposure
		require.NoError(t, json.Unmarshal(payload, &rows))
		assert.Len(t, rows, 5)
		assert.Equal(t, "p1", rows[0].PatioID)
	}
}

func TestSweepArchiveFailureStopsBeforePurge(t *testing.T) {
	store := &fakeExpiredStore{expired: expiredRows(5)}
	sink := newFakeSink()
	sink.storeErr = errors.New("s3 unavailable")
	svc := newTestRetention(store, sink)

	stats, err := svc.Sweep(context.Background())
	require.Error(t, err)

	assert.Equal(t, int64(0), stats.RowsPurged, "nothing purged when archival fails")
	assert.Len(t, store.expired, 5, "rows retained for the next sweep")
}

func TestSweepWithoutSinkPurgesOnly(t *testing.T) {
	store := &fakeExpiredStore{expired: expiredRows(5)}
	svc := newTestRetention(store, nil)

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RowsArchived)
	assert.Equal(t, int64(5), stats.RowsPurged)
}

func TestSweepNothingExpired(t *testing.T) {
	store := &fakeExpiredStore{}
	svc := newTestRetention(store, newFakeSink())

	stats, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepStats{}, stats)
}
