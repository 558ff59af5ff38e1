package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/storage"
)

// failingStore fails every operation except Close.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (f *failingStore) InsertRecord(ctx context.Context, record *domain.MessageRecord) error {
	return errStoreDown
}

func (f *failingStore) ListRecords(ctx context.Context, limit int) ([]domain.MessageRecord, error) {
	return nil, errStoreDown
}

func (f *failingStore) GetRecord(ctx context.Context, id string) (*domain.MessageRecord, error) {
	return nil, errStoreDown
}

func (f *failingStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return nil, errStoreDown
}

func (f *failingStore) Clear(ctx context.Context) error    { return errStoreDown }
func (f *failingStore) SelfTest(ctx context.Context) error { return errStoreDown }
func (f *failingStore) Close() error                       { return nil }
func (f *failingStore) Health() error                      { return errStoreDown }

func TestFeed_ListDefaultLimit(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 60; i++ {
		require.NoError(t, store.InsertRecord(context.Background(), &domain.MessageRecord{ID: "m"}))
	}
	svc := NewFeedService(store, 50, nil, zap.NewNop())

	records, degraded := svc.List(context.Background(), 0)
	assert.False(t, degraded)
	assert.Len(t, records, 50)

	records, _ = svc.List(context.Background(), 10)
	assert.Len(t, records, 10)
}

func TestFeed_ListDegradesOnStorageFailure(t *testing.T) {
	svc := NewFeedService(&failingStore{}, 50, nil, zap.NewNop())

	records, degraded := svc.List(context.Background(), 10)
	assert.True(t, degraded)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFeed_StatsDegradesOnStorageFailure(t *testing.T) {
	svc := NewFeedService(&failingStore{}, 50, nil, zap.NewNop())

	stats, degraded := svc.Stats(context.Background())
	assert.True(t, degraded)
	require.NotNil(t, stats)
	assert.Zero(t, stats.TotalCount)
	assert.Nil(t, stats.NewestDate)
}

func TestFeed_GetNotFound(t *testing.T) {
	svc := NewFeedService(&fakeStore{}, 50, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestFeed_Get(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.InsertRecord(context.Background(), &domain.MessageRecord{
		ID:      "m1",
		Subject: "hello",
	}))
	svc := NewFeedService(store, 50, nil, zap.NewNop())

	record, err := svc.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", record.Subject)
}

func TestFeed_ClearPropagatesFailure(t *testing.T) {
	svc := NewFeedService(&failingStore{}, 50, nil, zap.NewNop())

	err := svc.Clear(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestFeed_Clear(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.InsertRecord(context.Background(), &domain.MessageRecord{ID: "m1"}))
	svc := NewFeedService(store, 50, nil, zap.NewNop())

	require.NoError(t, svc.Clear(context.Background()))

	records, degraded := svc.List(context.Background(), 10)
	assert.False(t, degraded)
	assert.Empty(t, records)
}
