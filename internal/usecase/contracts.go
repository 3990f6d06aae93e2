package usecase

import (
	"context"
	"io"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
)

type (
	// TransitionHandler applies one validated event.
	TransitionHandler interface {
		Handle(ctx context.Context, ev entity.Event) error
	}

	// BatchProcessor returns one result per message, in order.
	BatchProcessor interface {
		ProcessBatch(ctx context.Context, msgs []dto.RawMessage) []dto.Result
	}

	RecordUseCase interface {
		Get(ctx context.Context, id string) (*entity.Image, error)
		Apply(ctx context.Context, id string, changes entity.Changes, createIfMissing bool) (*entity.RecordChange, error)
		GetPendingEvents(ctx context.Context, limit, maxRetries int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkAsProcessedBatch(ctx context.Context, events []*entity.OutboxEvent) error
		IncrementRetryCountBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkAsFailedBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		CleanupOutbox(ctx context.Context) error
	}

	ImageUseCase interface {
		UploadNewImage(ctx context.Context, data io.Reader, originalName, contentType string, size int64) (entity.BlobRef, error)
		RequestMetadataUpdate(ctx context.Context, id, field, value string) error
		RequestStatusUpdate(ctx context.Context, id string, body dto.StatusUpdateBody, date string) error
		GetRecord(ctx context.Context, id string) (*entity.Image, error)
	}
)
