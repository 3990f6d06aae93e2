package record

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/testutil"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUseCase() (*UseCase, *testutil.RecordStore, *testutil.Outbox) {
	store := testutil.NewRecordStore()
	outbox := testutil.NewOutbox()
	uc := New(store, outbox, testutil.Transactor{}, 24*time.Hour, logger.NewNop())
	uc.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	return uc, store, outbox
}

func TestApplyInsertThenModify(t *testing.T) {
	uc, _, outbox := newUseCase()
	ctx := context.Background()

	change, err := uc.Apply(ctx, "a.jpg", entity.Changes{entity.Set(entity.FieldCaption, "one")}, true)
	require.NoError(t, err)
	assert.Equal(t, entity.ChangeInsert, change.EventName)
	assert.Nil(t, change.OldImage)
	assert.Equal(t, "one", *change.NewImage.Caption)

	change, err = uc.Apply(ctx, "a.jpg", entity.Changes{entity.Set(entity.FieldStatus, entity.StatusPass)}, false)
	require.NoError(t, err)
	assert.Equal(t, entity.ChangeModify, change.EventName)
	assert.Equal(t, entity.StatusUnset, change.OldImage.Status)
	assert.Equal(t, entity.StatusPass, change.NewImage.Status)
	assert.Equal(t, []entity.Field{entity.FieldStatus}, change.Fields)
	assert.True(t, change.StatusChanged())

	events := outbox.Events()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "a.jpg", e.AggregateID)
		assert.Equal(t, entity.Pending, e.Status)
		assert.NotEqual(t, uuid.Nil, e.ID)
	}

	var decoded entity.RecordChange
	require.NoError(t, json.Unmarshal(events[1].Payload, &decoded))
	assert.Equal(t, entity.ChangeModify, decoded.EventName)
	assert.Equal(t, "a.jpg", decoded.Keys.ID)
	assert.Equal(t, entity.StatusPass, decoded.NewImage.Status)
	assert.Equal(t, "one", *decoded.OldImage.Caption)
	assert.True(t, decoded.StatusChanged())
}

func TestApplyMissingRecord(t *testing.T) {
	uc, store, outbox := newUseCase()

	_, err := uc.Apply(context.Background(), "a.jpg", entity.Changes{entity.Set(entity.FieldCaption, "x")}, false)

	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, outbox.Events())
}

func TestApplyOutboxFailure(t *testing.T) {
	uc, _, outbox := newUseCase()
	outbox.Err = errors.New("disk full")

	_, err := uc.Apply(context.Background(), "a.jpg", entity.Changes{entity.Set(entity.FieldCaption, "x")}, true)

	assert.ErrorContains(t, err, "disk full")
}

func TestGet(t *testing.T) {
	uc, store, _ := newUseCase()
	store.Put(&entity.Image{ID: "a.jpg", Status: entity.StatusReject})

	img, err := uc.Get(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReject, img.Status)

	_, err = uc.Get(context.Background(), "b.jpg")
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestOutboxLifecycle(t *testing.T) {
	uc, _, outbox := newUseCase()
	ctx := context.Background()

	for _, id := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		_, err := uc.Apply(ctx, id, entity.Changes{entity.Set(entity.FieldCaption, id)}, true)
		require.NoError(t, err)
	}

	pending, err := uc.GetPendingEvents(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, uc.MarkAsProcessingBatch(ctx, pending))
	require.NoError(t, uc.MarkAsProcessedBatch(ctx, pending[:1]))
	require.NoError(t, uc.IncrementRetryCountBatch(ctx, pending[1:]))

	statuses := map[entity.OutboxStatus]int{}
	for _, e := range outbox.Events() {
		statuses[e.Status]++
	}
	assert.Equal(t, 1, statuses[entity.Processed])
	assert.Equal(t, 2, statuses[entity.Pending])

	require.NoError(t, uc.MarkMaxRetriesAsFailed(ctx, 1))
	failed := 0
	for _, e := range outbox.Events() {
		if e.Status == entity.Failed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestCleanupOutboxUsesRetention(t *testing.T) {
	uc, _, outbox := newUseCase()
	ctx := context.Background()

	old := &entity.OutboxEvent{ID: uuid.New(), Status: entity.Processed, CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := &entity.OutboxEvent{ID: uuid.New(), Status: entity.Processed, CreatedAt: time.Now()}
	pending := &entity.OutboxEvent{ID: uuid.New(), Status: entity.Pending, CreatedAt: time.Now().Add(-48 * time.Hour)}
	for _, e := range []*entity.OutboxEvent{old, recent, pending} {
		require.NoError(t, outbox.Create(ctx, e))
	}

	require.NoError(t, uc.CleanupOutbox(ctx))

	left := outbox.Events()
	require.Len(t, left, 2)
	assert.Equal(t, recent.ID, left[0].ID)
	assert.Equal(t, pending.ID, left[1].ID)
}
