package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/testutil"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	eventsTopic = "photo-events"
	dlqTopic    = "photo-events-dlq"
)

type processorFunc func(ctx context.Context, msgs []dto.RawMessage) []dto.Result

func (f processorFunc) ProcessBatch(ctx context.Context, msgs []dto.RawMessage) []dto.Result {
	return f(ctx, msgs)
}

func always(outcome dto.Outcome, err error) processorFunc {
	return func(_ context.Context, msgs []dto.RawMessage) []dto.Result {
		out := make([]dto.Result, len(msgs))
		for i := range out {
			out[i] = dto.Result{Outcome: outcome, Err: err}
		}
		return out
	}
}

type fakeSource struct {
	batches chan []dto.RawMessage

	mu        sync.Mutex
	committed [][]dto.RawMessage
	closed    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{batches: make(chan []dto.RawMessage, 8)}
}

func (s *fakeSource) FetchBatch(ctx context.Context, _ int, _ time.Duration) ([]dto.RawMessage, error) {
	select {
	case b := <-s.batches:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSource) Commit(_ context.Context, msgs []dto.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = append(s.committed, msgs)
	return nil
}

func (s *fakeSource) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.committed)
}

func (s *fakeSource) Topic() string { return eventsTopic }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func testConfig() Config {
	return Config{
		BatchSize:       5,
		BatchWindow:     10 * time.Millisecond,
		CommitTimeout:   time.Second,
		ProcessTimeout:  time.Second,
		MaxReceiveCount: 3,
		Workers:         1,
		DeadLetterTopic: dlqTopic,

		PublishRetryBackoff: 5 * time.Millisecond,
	}
}

func newController(prc processorFunc, src *fakeSource, pub *testutil.Publisher, cfg Config) *KafkaController {
	c := New("events", prc, src, pub, cfg, nil, logger.NewNop())
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

func message(id string, receive int) dto.RawMessage {
	return dto.RawMessage{
		ID:           id,
		Body:         []byte(`{"id":"a.jpg"}`),
		Attributes:   map[string]string{"metadata_type": "Caption"},
		ReceiveCount: receive,
		Topic:        eventsTopic,
	}
}

func TestHandleDoneCommits(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	c := newController(always(dto.Done, nil), src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 1), message("m2", 1)})

	assert.Equal(t, 1, src.Committed())
	assert.Empty(t, pub.Messages(eventsTopic))
	assert.Empty(t, pub.Messages(dlqTopic))
}

func TestHandleRetryRepublishes(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	c := newController(always(dto.Retry, errors.New("timeout")), src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 1)})

	retried := pub.Messages(eventsTopic)
	require.Len(t, retried, 1)
	assert.Equal(t, "2", retried[0].Attr(dto.AttrReceiveCount))
	assert.Equal(t, "Caption", retried[0].Attr("metadata_type"))
	assert.Equal(t, []byte(`{"id":"a.jpg"}`), retried[0].Body)
	assert.Equal(t, 1, src.Committed())
}

func TestHandleExhaustedGoesToDeadLetters(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	c := newController(always(dto.Retry, errors.New("timeout")), src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 3)})

	assert.Empty(t, pub.Messages(eventsTopic))
	dead := pub.Messages(dlqTopic)
	require.Len(t, dead, 1)
	assert.Equal(t, "timeout", dead[0].Attr(dto.AttrDeadLetterReason))
	assert.Equal(t, eventsTopic, dead[0].Attr(dto.AttrSourceTopic))
	assert.Equal(t, "m1", dead[0].Attr(dto.AttrSourceID))
	assert.Equal(t, "1", dead[0].Attr(dto.AttrReceiveCount))
}

func TestHandleExhaustedWithoutDeadLetterTopic(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	cfg := testConfig()
	cfg.DeadLetterTopic = ""
	c := newController(always(dto.Retry, errors.New("timeout")), src, pub, cfg)

	c.handle([]dto.RawMessage{message("m1", 3)})

	assert.Empty(t, pub.Messages(eventsTopic))
	assert.Empty(t, pub.Messages(dlqTopic))
	assert.Equal(t, 1, src.Committed())
}

func TestHandleEscalatedPublishesDeadLetters(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	prc := processorFunc(func(_ context.Context, msgs []dto.RawMessage) []dto.Result {
		return []dto.Result{{
			Outcome:     dto.Escalated,
			DeadLetters: []dto.RawMessage{{Body: []byte(`{"kind":"BlobCreated","bucket":"b","key":"a.gif"}`)}},
		}}
	})
	c := newController(prc, src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 1)})

	dead := pub.Messages(dlqTopic)
	require.Len(t, dead, 1)
	assert.Equal(t, eventsTopic, dead[0].Attr(dto.AttrSourceTopic))
	assert.Equal(t, "m1", dead[0].Attr(dto.AttrSourceID))
	assert.Equal(t, 1, src.Committed())
}

func TestHandlePublishFailureRetriesBeforeCommit(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	pub.Failures = 2
	c := newController(always(dto.Retry, errors.New("timeout")), src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 1)})

	assert.Equal(t, 3, pub.Calls())
	require.Len(t, pub.Messages(eventsTopic), 1)
	assert.Equal(t, 1, src.Committed())
}

func TestHandlePublishesEachGroupOnce(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	prc := processorFunc(func(_ context.Context, msgs []dto.RawMessage) []dto.Result {
		return []dto.Result{
			{Outcome: dto.Retry, Err: errors.New("exhausted")},
			{Outcome: dto.Retry, Err: errors.New("timeout")},
		}
	})
	c := newController(prc, src, pub, testConfig())

	pub.Failures = 1
	pub.FailTopic = eventsTopic

	c.handle([]dto.RawMessage{message("m1", 3), message("m2", 1)})

	assert.Equal(t, 3, pub.Calls())
	assert.Len(t, pub.Messages(dlqTopic), 1)
	assert.Len(t, pub.Messages(eventsTopic), 1)
	assert.Equal(t, 1, src.Committed())
}

func TestHandlePublishFailureHoldsUntilShutdown(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	pub.Err = errors.New("broker down")
	c := newController(always(dto.Retry, errors.New("timeout")), src, pub, testConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.handle([]dto.RawMessage{message("m1", 1)})
	}()

	assert.Eventually(t, func() bool { return pub.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	c.cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after cancel")
	}
	assert.Zero(t, src.Committed())
}

func TestHandleResultCountMismatch(t *testing.T) {
	src, pub := newFakeSource(), testutil.NewPublisher()
	prc := processorFunc(func(context.Context, []dto.RawMessage) []dto.Result { return nil })
	c := newController(prc, src, pub, testConfig())

	c.handle([]dto.RawMessage{message("m1", 1)})

	assert.Zero(t, src.Committed())
}

func TestStartAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	src, pub := newFakeSource(), testutil.NewPublisher()

	var (
		mu   sync.Mutex
		seen []string
	)
	prc := processorFunc(func(_ context.Context, msgs []dto.RawMessage) []dto.Result {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range msgs {
			seen = append(seen, m.ID)
		}
		return make([]dto.Result, len(msgs))
	})

	c := New("events", prc, src, pub, testConfig(), nil, logger.NewNop())
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))

	src.batches <- []dto.RawMessage{message("m1", 1)}
	src.batches <- []dto.RawMessage{message("m2", 1), message("m3", 1)}

	assert.Eventually(t, func() bool { return src.Committed() == 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	mu.Lock()
	assert.Equal(t, []string{"m1", "m2", "m3"}, seen)
	mu.Unlock()

	src.mu.Lock()
	assert.True(t, src.closed)
	src.mu.Unlock()
}

func TestShutdownWithoutStart(t *testing.T) {
	c := New("events", always(dto.Done, nil), newFakeSource(), testutil.NewPublisher(), testConfig(), nil, logger.NewNop())
	assert.NoError(t, c.Shutdown(context.Background()))
}
