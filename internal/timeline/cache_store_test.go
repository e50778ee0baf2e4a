package timeline

import (
	"context"
	"encoding/json"
	"time"
)

// fakeCacheStore is an in-memory cache.Store for service tests.
type fakeCacheStore struct {
	data    map[string][]byte
	counter map[string]int64
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: map[string][]byte{}, counter: map[string]int64{}}
}

func (f *fakeCacheStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	if n, ok := f.counter[key]; ok {
		b, _ := json.Marshal(n)
		return true, json.Unmarshal(b, dest)
	}
	b, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (f *fakeCacheStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = b
	return nil
}

func (f *fakeCacheStore) Incr(_ context.Context, key string) (int64, error) {
	f.counter[key]++
	return f.counter[key], nil
}

func (f *fakeCacheStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
