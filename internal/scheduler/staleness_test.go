package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrasol/internal/types"
)

type fakeStalenessStore struct {
	flagged map[string]time.Time
	count   int64
	err     error
}

func (f *fakeStalenessStore) MarkStale(_ context.Context, patioID string, from time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.flagged == nil {
		f.flagged = map[string]time.Time{}
	}
	f.flagged[patioID] = from
	return f.count, nil
}

type fakeTrigger struct {
	dates   []time.Time
	reasons []string
	err     error
}

func (f *fakeTrigger) EnqueueDate(_ context.Context, targetDate time.Time, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.dates = append(f.dates, targetDate)
	f.reasons = append(f.reasons, reason)
	return nil
}

func TestMarkPatioStaleFlagsAndEnqueues(t *testing.T) {
	store := &fakeStalenessStore{count: 17}
	trigger := &fakeTrigger{}
	clock := types.FixedClock{T: time.Date(2025, 6, 21, 14, 30, 0, 0, time.UTC)}
	svc := NewStalenessService(store, nil, trigger, clock, nil)

	flagged, err := svc.MarkPatioStale(context.Background(), "patio-1")
	require.NoError(t, err)

	assert.Equal(t, int64(17), flagged)
	assert.Equal(t, clock.T, store.flagged["patio-1"], "only future rows flagged")

	require.Len(t, trigger.dates, RefreshHorizonDays)
	assert.Equal(t, time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), trigger.dates[0])
	assert.Equal(t, time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), trigger.dates[1])
	assert.Contains(t, trigger.reasons[0], "patio-1")
}

func TestMarkPatioStaleStoreError(t *testing.T) {
	store := &fakeStalenessStore{err: errors.New("db down")}
	trigger := &fakeTrigger{}
	svc := NewStalenessService(store, nil, trigger, nil, nil)

	_, err := svc.MarkPatioStale(context.Background(), "patio-1")
	require.Error(t, err)
	assert.Empty(t, trigger.dates, "no refresh enqueued when flagging fails")
}

func TestMarkPatioStaleEnqueueFailureNotFatal(t *testing.T) {
	store := &fakeStalenessStore{count: 3}
	trigger := &fakeTrigger{err: errors.New("sqs down")}
	svc := NewStalenessService(store, nil, trigger, nil, nil)

	flagged, err := svc.MarkPatioStale(context.Background(), "patio-1")
	require.NoError(t, err, "stale flag alone is sufficient degradation")
	assert.Equal(t, int64(3), flagged)
}

func TestMarkPatioStaleWithoutTrigger(t *testing.T) {
	store := &fakeStalenessStore{count: 1}
	svc := NewStalenessService(store, nil, nil, nil, nil)

	flagged, err := svc.MarkPatioStale(context.Background(), "patio-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), flagged)
}
