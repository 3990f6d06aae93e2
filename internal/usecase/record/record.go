package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/repo"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/google/uuid"
)

// UseCase fronts the record store. Every mutation writes its change-feed row
// to the outbox in the same transaction.
type UseCase struct {
	records    repo.ImageRecordRepo
	outbox     repo.OutboxRepo
	transactor repo.Transactor

	retention time.Duration
	now       func() time.Time

	logger logger.Interface
}

func New(
	records repo.ImageRecordRepo,
	outbox repo.OutboxRepo,
	transactor repo.Transactor,
	retention time.Duration,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		records:    records,
		outbox:     outbox,
		transactor: transactor,
		retention:  retention,
		now:        time.Now,
		logger:     l,
	}
}

func (uc *UseCase) Get(ctx context.Context, id string) (*entity.Image, error) {
	image, err := uc.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RecordUseCase - Get - uc.records.GetByID: %w", err)
	}

	return image, nil
}

// Apply writes changes to the record and returns the captured change.
// Errors wrap errs.ErrRecordNotFound when the record is absent and
// createIfMissing is false.
func (uc *UseCase) Apply(
	ctx context.Context,
	id string,
	changes entity.Changes,
	createIfMissing bool,
) (*entity.RecordChange, error) {
	var change *entity.RecordChange

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		before, after, err := uc.records.Apply(ctx, id, changes, createIfMissing)
		if err != nil {
			return fmt.Errorf("uc.records.Apply: %w", err)
		}

		change = uc.newChange(id, before, after, changes.Fields())

		event, err := uc.createOutboxEvent(change)
		if err != nil {
			return fmt.Errorf("uc.createOutboxEvent: %w", err)
		}
		if err := uc.outbox.Create(ctx, event); err != nil {
			return fmt.Errorf("uc.outbox.Create: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("RecordUseCase - Apply: %w", err)
	}

	return change, nil
}

func (uc *UseCase) newChange(id string, before, after *entity.Image, fields []entity.Field) *entity.RecordChange {
	name := entity.ChangeModify
	if before == nil {
		name = entity.ChangeInsert
	}

	return &entity.RecordChange{
		EventName: name,
		Keys:      entity.ChangeKeys{ID: id},
		OldImage:  before,
		NewImage:  after,
		Fields:    fields,
		CreatedAt: uc.now().UTC(),
	}
}

func (uc *UseCase) createOutboxEvent(change *entity.RecordChange) (*entity.OutboxEvent, error) {
	b, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return &entity.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: change.Keys.ID,
		Payload:     b,
		Status:      entity.Pending,
		CreatedAt:   change.CreatedAt,
		RetryCount:  0,
	}, nil
}
