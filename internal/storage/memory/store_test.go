package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/storage"
)

func newRecord(id string) *domain.MessageRecord {
	return &domain.MessageRecord{
		ID:         id,
		Subject:    "subject " + id,
		From:       "sender@example.com",
		Date:       "Mon, 13 Jan 2025 10:00:00 +0000",
		ReceivedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_InsertAndList(t *testing.T) {
	store := NewStore(100, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, newRecord("m1")))
	require.NoError(t, store.InsertRecord(ctx, newRecord("m2")))
	require.NoError(t, store.InsertRecord(ctx, newRecord("m3")))

	// Newest first
	records, err := store.ListRecords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "m3", records[0].ID)
	assert.Equal(t, "m1", records[2].ID)

	// Limit smaller than the queue
	records, err = store.ListRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m3", records[0].ID)
}

func TestMemoryStore_PositionalEviction(t *testing.T) {
	const capacity = 5
	store := NewStore(capacity, 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < capacity+3; i++ {
		require.NoError(t, store.InsertRecord(ctx, newRecord(fmt.Sprintf("m%d", i))))
	}

	records, err := store.ListRecords(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, capacity)

	// The newest capacity entries survive, oldest are gone
	assert.Equal(t, "m7", records[0].ID)
	assert.Equal(t, "m3", records[len(records)-1].ID)

	// Evicted from the queue but still reachable by ID: the two
	// eviction policies are independent
	record, err := store.GetRecord(ctx, "m0")
	require.NoError(t, err)
	assert.Equal(t, "m0", record.ID)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewStore(100, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, newRecord("m1")))

	record, err := store.GetRecord(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", record.ID)

	time.Sleep(40 * time.Millisecond)

	// Expired by TTL while still visible in the queue
	_, err = store.GetRecord(ctx, "m1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	records, err := store.ListRecords(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryStore_NoDeduplication(t *testing.T) {
	store := NewStore(100, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, newRecord("dup")))
	require.NoError(t, store.InsertRecord(ctx, newRecord("dup")))

	records, err := store.ListRecords(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryStore_Stats(t *testing.T) {
	store := NewStore(100, 24*time.Hour)
	ctx := context.Background()

	// Empty store: zero count, nil dates
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
	assert.Nil(t, stats.NewestDate)
	assert.Nil(t, stats.OldestDate)
	assert.Nil(t, stats.LastReceivedAt)

	first := newRecord("m1")
	first.Date = "Mon, 13 Jan 2025 08:00:00 +0000"
	second := newRecord("m2")
	second.Date = "Mon, 13 Jan 2025 09:00:00 +0000"
	require.NoError(t, store.InsertRecord(ctx, first))
	require.NoError(t, store.InsertRecord(ctx, second))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCount)
	require.NotNil(t, stats.NewestDate)
	require.NotNil(t, stats.OldestDate)
	assert.Equal(t, second.Date, *stats.NewestDate)
	assert.Equal(t, first.Date, *stats.OldestDate)
	require.NotNil(t, stats.LastReceivedAt)
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewStore(100, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, newRecord("m1")))
	require.NoError(t, store.InsertRecord(ctx, newRecord("m2")))

	require.NoError(t, store.Clear(ctx))

	records, err := store.ListRecords(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	// ID index cleared too
	_, err = store.GetRecord(ctx, "m1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
	assert.Nil(t, stats.LastReceivedAt)
}

func TestMemoryStore_GetUnknownID(t *testing.T) {
	store := NewStore(100, 24*time.Hour)

	_, err := store.GetRecord(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
