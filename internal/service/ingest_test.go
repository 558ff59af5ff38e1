package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailfeed/backend/internal/domain"
	"mailfeed/backend/internal/storage"
)

// fakeReconciler serves canned messages and counts invocations.
type fakeReconciler struct {
	messages []*gmailapi.Message
	err      error
	calls    int
	cursors  []string
}

func (f *fakeReconciler) Reconcile(ctx context.Context, cursor string) ([]*gmailapi.Message, error) {
	f.calls++
	f.cursors = append(f.cursors, cursor)
	return f.messages, f.err
}

// fakeStore records inserts in memory and can be forced to fail.
type fakeStore struct {
	inserted  []domain.MessageRecord
	insertErr error
}

func (f *fakeStore) InsertRecord(ctx context.Context, record *domain.MessageRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *record)
	return nil
}

func (f *fakeStore) ListRecords(ctx context.Context, limit int) ([]domain.MessageRecord, error) {
	if limit > len(f.inserted) {
		limit = len(f.inserted)
	}
	out := make([]domain.MessageRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = f.inserted[len(f.inserted)-1-i]
	}
	return out, nil
}

func (f *fakeStore) GetRecord(ctx context.Context, id string) (*domain.MessageRecord, error) {
	for i := len(f.inserted) - 1; i >= 0; i-- {
		if f.inserted[i].ID == id {
			record := f.inserted[i]
			return &record, nil
		}
	}
	return nil, storage.ErrRecordNotFound
}

func (f *fakeStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{TotalCount: len(f.inserted)}, nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.inserted = nil
	return nil
}

func (f *fakeStore) SelfTest(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                       { return nil }
func (f *fakeStore) Health() error                      { return nil }

func makeEnvelope(t *testing.T, emailAddress string, historyID domain.Cursor) *domain.PushEnvelope {
	t.Helper()
	data, err := domain.EncodePushData(&domain.ChangeEvent{
		EmailAddress: emailAddress,
		HistoryID:    historyID,
	})
	require.NoError(t, err)
	return &domain.PushEnvelope{
		Message: domain.PushMessage{Data: data, MessageID: "pub-1"},
	}
}

func TestIngest_TestMarkerShortCircuitsProvider(t *testing.T) {
	reconciler := &fakeReconciler{}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "test-run-42"))

	assert.Equal(t, StatusSynthetic, result.Status)
	assert.Equal(t, 1, result.Stored)
	assert.Zero(t, reconciler.calls, "synthetic notifications must not reach the provider")

	require.Len(t, store.inserted, 1)
	record := store.inserted[0]
	assert.NotEmpty(t, record.ID)
	assert.Contains(t, record.Subject, "[TEST]")
	assert.Contains(t, record.Snippet, "test-run-42")
	assert.Equal(t, "test-run-42", record.HistoryID)
	assert.Equal(t, "user@example.com", record.To)
	assert.False(t, record.ReceivedAt.IsZero())
}

func TestIngest_DecodableNotificationStoresRecords(t *testing.T) {
	reconciler := &fakeReconciler{
		messages: []*gmailapi.Message{
			{Id: "m1", Snippet: "first"},
			{Id: "m2", Snippet: "second"},
		},
	}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "12345"))

	assert.Equal(t, StatusProcessed, result.Status)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, []string{"12345"}, reconciler.cursors)

	require.Len(t, store.inserted, 2)
	for _, record := range store.inserted {
		// Pipeline stamps the storage fields
		assert.Equal(t, "12345", record.HistoryID)
		assert.False(t, record.ReceivedAt.IsZero())
		assert.WithinDuration(t, time.Now().UTC(), record.ReceivedAt, time.Minute)
	}
}

func TestIngest_UndecodableEnvelopeDropped(t *testing.T) {
	reconciler := &fakeReconciler{}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), &domain.PushEnvelope{
		Message: domain.PushMessage{Data: "!!!garbage!!!"},
	})

	assert.Equal(t, StatusInvalidEnvelope, result.Status)
	assert.Error(t, result.Err)
	assert.Zero(t, reconciler.calls)
	assert.Empty(t, store.inserted)
}

func TestIngest_ReconcileFailureDropsNotification(t *testing.T) {
	reconciler := &fakeReconciler{err: errors.New("provider down")}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "12345"))

	assert.Equal(t, StatusReconcileFailed, result.Status)
	assert.Error(t, result.Err)
	assert.Empty(t, store.inserted)
}

func TestIngest_InsertFailuresAreSwallowed(t *testing.T) {
	reconciler := &fakeReconciler{
		messages: []*gmailapi.Message{{Id: "m1"}},
	}
	store := &fakeStore{insertErr: errors.New("storage down")}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "12345"))

	// Pipeline never propagates storage failures to the caller
	assert.Equal(t, StatusProcessed, result.Status)
	assert.Equal(t, 1, result.Fetched)
	assert.Zero(t, result.Stored)
}

func TestIngest_DuplicateMessageIDsBothStored(t *testing.T) {
	reconciler := &fakeReconciler{
		messages: []*gmailapi.Message{
			{Id: "same", Snippet: "one"},
			{Id: "same", Snippet: "two"},
		},
	}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "12345"))

	// No deduplication by message ID
	assert.Equal(t, 2, result.Stored)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, store.inserted[0].ID, store.inserted[1].ID)
}

func TestIngest_InvalidCursorProducesNoRecords(t *testing.T) {
	// A non-test non-numeric cursor reconciles to nothing (fake mirrors
	// the real reconciler returning an empty slice without error)
	reconciler := &fakeReconciler{}
	store := &fakeStore{}
	svc := NewIngestService(reconciler, store, nil, zap.NewNop())

	result := svc.Process(context.Background(), makeEnvelope(t, "user@example.com", "not-a-number"))

	assert.Equal(t, StatusProcessed, result.Status)
	assert.Zero(t, result.Stored)
	assert.Empty(t, store.inserted)
	assert.True(t, strings.HasPrefix(result.Cursor, "not-"))
}
