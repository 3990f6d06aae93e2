package repo

import (
	"context"
	"io"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	BlobRepo interface {
		Head(ctx context.Context, ref entity.BlobRef) (entity.BlobInfo, error)
		Exists(ctx context.Context, ref entity.BlobRef) (bool, error)
		DownloadBytes(ctx context.Context, ref entity.BlobRef) ([]byte, error)
		Upload(ctx context.Context, ref entity.BlobRef, data io.Reader, contentType string, size int64) error
		Delete(ctx context.Context, ref entity.BlobRef) error
	}

	ImageRecordRepo interface {
		GetByID(ctx context.Context, id string) (*entity.Image, error)
		// Apply writes changes to one record and returns it before and after.
		// before is nil when the record was created. A missing record with
		// createIfMissing unset yields errs.ErrRecordNotFound.
		Apply(ctx context.Context, id string, changes entity.Changes, createIfMissing bool) (before, after *entity.Image, err error)
	}

	OutboxRepo interface {
		Create(ctx context.Context, event *entity.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int, maxRetries int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkAsProcessedBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkAsFailedBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		IncrementRetryCountBatch(ctx context.Context, IDs uuid.UUIDs) error
		DeleteOldProcessedAndFailed(ctx context.Context, olderThan time.Duration) (int64, error)
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
