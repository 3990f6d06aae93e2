package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/testutil"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reader struct {
	images map[string]*entity.Image
	err    error
	calls  int
}

func (r *reader) Get(_ context.Context, id string) (*entity.Image, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	img, ok := r.images[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return img, nil
}

func ptr[T any](v T) *T { return &v }

func newNotifier(t *testing.T, r *reader, m *testutil.Mailer) *Notifier {
	t.Helper()

	n, err := New(r, m, Config{Sender: "noreply@example.com", DefaultRecipient: "ops@example.com"}, nil, logger.NewNop())
	require.NoError(t, err)

	return n
}

func statusChange(id string, from, to entity.ReviewStatus) entity.RecordChange {
	return entity.RecordChange{
		EventName: entity.ChangeModify,
		Keys:      entity.ChangeKeys{ID: id},
		OldImage:  &entity.Image{ID: id, Status: from},
		NewImage:  &entity.Image{ID: id, Status: to},
	}
}

func changeMessage(t *testing.T, eventID string, change entity.RecordChange) dto.RawMessage {
	t.Helper()

	body, err := json.Marshal(change)
	require.NoError(t, err)

	return dto.RawMessage{ID: eventID, Body: body, Attributes: map[string]string{dto.AttrEventID: eventID}}
}

func TestNewRequiresSender(t *testing.T) {
	_, err := New(&reader{}, &testutil.Mailer{}, Config{}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestHandleSendsToPhotographer(t *testing.T) {
	r := &reader{images: map[string]*entity.Image{
		"a.jpg": {
			ID:                "a.jpg",
			Caption:           ptr("Sunset"),
			PhotographerName:  ptr("Ann"),
			PhotographerEmail: ptr("ann@example.com"),
			Reason:            ptr("Great shot"),
			ReviewDate:        ptr("2026-05-01"),
			Status:            entity.StatusPass,
		},
	}}
	m := &testutil.Mailer{}

	require.NoError(t, newNotifier(t, r, m).Handle(context.Background(), statusChange("a.jpg", entity.StatusUnset, entity.StatusPass)))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ann@example.com", sent[0].To)
	assert.Equal(t, "noreply@example.com", sent[0].From)
	assert.Equal(t, "Photo Status Update: Pass", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Hello Ann")
	assert.Contains(t, sent[0].HTML, "Great shot")
	assert.Contains(t, sent[0].HTML, "color: green")
	assert.Contains(t, sent[0].HTML, "Sunset")
	assert.Contains(t, sent[0].Text, "Great shot")
	assert.NotContains(t, sent[0].Text, "<p>")
}

func TestHandleFallsBack(t *testing.T) {
	r := &reader{images: map[string]*entity.Image{"a.jpg": {ID: "a.jpg", Status: entity.StatusReject}}}
	m := &testutil.Mailer{}

	require.NoError(t, newNotifier(t, r, m).Handle(context.Background(), statusChange("a.jpg", entity.StatusPass, entity.StatusReject)))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, "Hello Photographer")
	assert.Contains(t, sent[0].HTML, "No reason provided")
	assert.Contains(t, sent[0].HTML, "color: red")
	assert.NotContains(t, sent[0].HTML, "Review Date")
}

func TestHandleIgnoresOtherChanges(t *testing.T) {
	r := &reader{images: map[string]*entity.Image{"a.jpg": {ID: "a.jpg"}}}
	m := &testutil.Mailer{}
	n := newNotifier(t, r, m)
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, statusChange("a.jpg", entity.StatusPass, entity.StatusPass)))
	require.NoError(t, n.Handle(ctx, statusChange("a.jpg", entity.StatusPass, entity.StatusUnset)))
	require.NoError(t, n.Handle(ctx, entity.RecordChange{
		EventName: entity.ChangeInsert,
		Keys:      entity.ChangeKeys{ID: "a.jpg"},
		NewImage:  &entity.Image{ID: "a.jpg", Status: entity.StatusPass},
	}))

	assert.Empty(t, m.Sent())
	assert.Zero(t, r.calls)
}

func TestHandleMissingRecord(t *testing.T) {
	m := &testutil.Mailer{}

	err := newNotifier(t, &reader{}, m).Handle(context.Background(), statusChange("a.jpg", entity.StatusUnset, entity.StatusPass))

	assert.NoError(t, err)
	assert.Empty(t, m.Sent())
}

func TestHandleReadFailure(t *testing.T) {
	err := newNotifier(t, &reader{err: errors.New("timeout")}, &testutil.Mailer{}).
		Handle(context.Background(), statusChange("a.jpg", entity.StatusUnset, entity.StatusPass))

	assert.Error(t, err)
}

func TestHandleSwallowsSendFailure(t *testing.T) {
	r := &reader{images: map[string]*entity.Image{"a.jpg": {ID: "a.jpg"}}}
	m := &testutil.Mailer{Err: errors.New("throttled")}

	err := newNotifier(t, r, m).Handle(context.Background(), statusChange("a.jpg", entity.StatusUnset, entity.StatusPass))

	assert.NoError(t, err)
}

func TestProcessBatch(t *testing.T) {
	r := &reader{images: map[string]*entity.Image{"a.jpg": {ID: "a.jpg"}}}
	m := &testutil.Mailer{}
	n := newNotifier(t, r, m)

	change := statusChange("a.jpg", entity.StatusUnset, entity.StatusPass)
	res := n.ProcessBatch(context.Background(), []dto.RawMessage{
		changeMessage(t, "e1", change),
		changeMessage(t, "e1", change),
		{ID: "bad", Body: []byte("nope")},
		{ID: "empty", Body: []byte(`{"eventName":"MODIFY"}`)},
	})

	require.Len(t, res, 4)
	assert.Equal(t, dto.Done, res[0].Outcome)
	assert.Equal(t, dto.Done, res[1].Outcome)
	assert.Equal(t, dto.Dropped, res[2].Outcome)
	assert.Equal(t, dto.Dropped, res[3].Outcome)
	assert.Len(t, m.Sent(), 1, "duplicate change is sent once")
}

func TestProcessBatchRetriesReadFailure(t *testing.T) {
	r := &reader{err: errors.New("timeout")}
	m := &testutil.Mailer{}
	n := newNotifier(t, r, m)

	msg := changeMessage(t, "e1", statusChange("a.jpg", entity.StatusUnset, entity.StatusPass))
	res := n.ProcessBatch(context.Background(), []dto.RawMessage{msg})
	assert.Equal(t, dto.Retry, res[0].Outcome)

	// A failed attempt is not remembered.
	r.err = nil
	r.images = map[string]*entity.Image{"a.jpg": {ID: "a.jpg"}}
	res = n.ProcessBatch(context.Background(), []dto.RawMessage{msg})
	assert.Equal(t, dto.Done, res[0].Outcome)
	assert.Len(t, m.Sent(), 1)
}
