// Package testutil holds in-memory stand-ins for the stores and transports.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// RecordStore is an in-memory repo.ImageRecordRepo.
type RecordStore struct {
	mu      sync.Mutex
	records map[string]*entity.Image

	// Err, when set, is returned by every call.
	Err error
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: map[string]*entity.Image{}}
}

func (s *RecordStore) Put(image *entity.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[image.ID] = image.Clone()
}

// Record returns a copy of the stored record or nil.
func (s *RecordStore) Record(id string) *entity.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[id].Clone()
}

func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

func (s *RecordStore) GetByID(_ context.Context, id string) (*entity.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	image, ok := s.records[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return image.Clone(), nil
}

func (s *RecordStore) Apply(
	_ context.Context,
	id string,
	changes entity.Changes,
	createIfMissing bool,
) (*entity.Image, *entity.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, nil, s.Err
	}

	current, ok := s.records[id]
	if !ok && !createIfMissing {
		return nil, nil, errs.ErrRecordNotFound
	}

	before := current.Clone()
	next := before.Clone()
	if next == nil {
		next = &entity.Image{ID: id}
	}

	if err := next.Apply(changes); err != nil {
		return nil, nil, err
	}
	s.records[id] = next

	return before, next.Clone(), nil
}

// Outbox is an in-memory repo.OutboxRepo.
type Outbox struct {
	mu     sync.Mutex
	events []*entity.OutboxEvent

	Err error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Events() []*entity.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*entity.OutboxEvent, len(o.events))
	for i, e := range o.events {
		c := *e
		out[i] = &c
	}
	return out
}

func (o *Outbox) Create(_ context.Context, event *entity.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}

	c := *event
	o.events = append(o.events, &c)

	return nil
}

func (o *Outbox) GetPendingEvents(_ context.Context, limit int, maxRetries int) ([]*entity.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}

	var out []*entity.OutboxEvent
	for _, e := range o.events {
		if len(out) == limit {
			break
		}
		if e.Status == entity.Pending && e.RetryCount < maxRetries {
			c := *e
			out = append(out, &c)
		}
	}

	return out, nil
}

func (o *Outbox) update(ids uuid.UUIDs, f func(e *entity.OutboxEvent)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}

	n := 0
	for _, e := range o.events {
		for _, id := range ids {
			if e.ID == id {
				f(e)
				n++
			}
		}
	}
	if n == 0 {
		return errs.ErrRecordNotFound
	}

	return nil
}

func (o *Outbox) MarkAsProcessingBatch(_ context.Context, ids uuid.UUIDs) error {
	return o.update(ids, func(e *entity.OutboxEvent) { e.Status = entity.Processing })
}

func (o *Outbox) MarkAsProcessedBatch(_ context.Context, ids uuid.UUIDs) error {
	now := time.Now()
	return o.update(ids, func(e *entity.OutboxEvent) {
		e.Status = entity.Processed
		e.ProcessedAt = &now
	})
}

func (o *Outbox) MarkAsFailedBatch(_ context.Context, ids uuid.UUIDs) error {
	return o.update(ids, func(e *entity.OutboxEvent) { e.Status = entity.Failed })
}

func (o *Outbox) IncrementRetryCountBatch(_ context.Context, ids uuid.UUIDs) error {
	return o.update(ids, func(e *entity.OutboxEvent) {
		e.RetryCount++
		e.Status = entity.Pending
	})
}

func (o *Outbox) MarkMaxRetriesAsFailed(_ context.Context, maxRetries int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range o.events {
		if e.Status == entity.Pending && e.RetryCount >= maxRetries {
			e.Status = entity.Failed
		}
	}

	return o.Err
}

func (o *Outbox) DeleteOldProcessedAndFailed(_ context.Context, olderThan time.Duration) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return 0, o.Err
	}

	cutoff := time.Now().Add(-olderThan)
	kept := o.events[:0]
	var n int64
	for _, e := range o.events {
		done := e.Status == entity.Processed || e.Status == entity.Failed
		if done && e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	o.events = kept

	return n, nil
}

// Transactor runs f directly.
type Transactor struct{}

func (Transactor) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

type blob struct {
	data        []byte
	contentType string
}

// BlobStore is an in-memory repo.BlobRepo.
type BlobStore struct {
	mu      sync.Mutex
	blobs   map[entity.BlobRef]blob
	deleted []entity.BlobRef

	Err error
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: map[entity.BlobRef]blob{}}
}

func (s *BlobStore) Put(ref entity.BlobRef, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[ref] = blob{data: data, contentType: contentType}
}

func (s *BlobStore) Has(ref entity.BlobRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.blobs[ref]
	return ok
}

// Deleted lists every successful Delete call, in order.
func (s *BlobStore) Deleted() []entity.BlobRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.BlobRef(nil), s.deleted...)
}

func (s *BlobStore) Head(_ context.Context, ref entity.BlobRef) (entity.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return entity.BlobInfo{}, s.Err
	}

	b, ok := s.blobs[ref]
	if !ok {
		return entity.BlobInfo{}, errs.ErrBlobNotFound
	}

	return entity.BlobInfo{Size: int64(len(b.data)), ContentType: b.contentType}, nil
}

func (s *BlobStore) Exists(ctx context.Context, ref entity.BlobRef) (bool, error) {
	_, err := s.Head(ctx, ref)
	if err == errs.ErrBlobNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *BlobStore) DownloadBytes(_ context.Context, ref entity.BlobRef) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	b, ok := s.blobs[ref]
	if !ok {
		return nil, errs.ErrBlobNotFound
	}

	return bytes.Clone(b.data), nil
}

func (s *BlobStore) Upload(_ context.Context, ref entity.BlobRef, data io.Reader, contentType string, _ int64) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	s.blobs[ref] = blob{data: b, contentType: contentType}

	return nil
}

func (s *BlobStore) Delete(_ context.Context, ref entity.BlobRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	delete(s.blobs, ref)
	s.deleted = append(s.deleted, ref)

	return nil
}

// Mailer records sent mail.
type Mailer struct {
	mu   sync.Mutex
	sent []dto.Mail

	Err error
}

func (m *Mailer) Send(_ context.Context, mail dto.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.sent = append(m.sent, mail)

	return nil
}

func (m *Mailer) Sent() []dto.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]dto.Mail(nil), m.sent...)
}

// Publisher records published messages by topic.
type Publisher struct {
	mu     sync.Mutex
	topics map[string][]dto.RawMessage
	calls  int

	Err error
	// Failures makes the next n calls fail with Err, or a generic error if
	// Err is nil. Zero with a non-nil Err fails every call. FailTopic, when
	// set, limits Failures to that topic.
	Failures  int
	FailTopic string
}

func NewPublisher() *Publisher {
	return &Publisher{topics: map[string][]dto.RawMessage{}}
}

func (p *Publisher) Publish(_ context.Context, topic string, msgs ...dto.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++

	if p.Failures > 0 && (p.FailTopic == "" || p.FailTopic == topic) {
		p.Failures--
		if p.Err != nil {
			return p.Err
		}
		return errors.New("publish failed")
	}
	if p.Err != nil {
		return p.Err
	}

	p.topics[topic] = append(p.topics[topic], msgs...)

	return nil
}

func (p *Publisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

func (p *Publisher) Messages(topic string) []dto.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]dto.RawMessage(nil), p.topics[topic]...)
}
