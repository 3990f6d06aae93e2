package transition

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/repo"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

// Ingestion creates the record for a newly stored blob.
type Ingestion struct {
	records usecase.RecordUseCase
	blobs   repo.BlobRepo
	prober  infrastructure.DimensionProber

	now    func() time.Time
	logger logger.Interface
}

// NewIngestion builds the handler. prober may be nil to skip width/height.
func NewIngestion(
	records usecase.RecordUseCase,
	blobs repo.BlobRepo,
	prober infrastructure.DimensionProber,
	l logger.Interface,
) *Ingestion {
	return &Ingestion{
		records: records,
		blobs:   blobs,
		prober:  prober,
		now:     time.Now,
		logger:  l,
	}
}

// Handle reads the blob's metadata and upserts the ingestion fields. An
// unreadable blob is an error so the message is redelivered.
func (h *Ingestion) Handle(ctx context.Context, ev entity.Event) error {
	if ev.Blob == nil {
		return fmt.Errorf("Ingestion - Handle: event has no blob")
	}

	ref := entity.BlobRef{Bucket: ev.Blob.Bucket, Key: ev.Blob.Key}

	info, err := h.blobs.Head(ctx, ref)
	if err != nil {
		return fmt.Errorf("Ingestion - Handle - h.blobs.Head: %w", err)
	}

	changes := entity.Changes{
		entity.SetIfUnset(entity.FieldUploadTime, h.now().UTC()),
		entity.Set(entity.FieldSize, info.Size),
		entity.Set(entity.FieldContentType, info.ContentType),
	}
	changes = append(changes, h.dimensions(ctx, ref)...)

	_, err = h.records.Apply(ctx, ref.Key, changes, true)
	if err != nil {
		return fmt.Errorf("Ingestion - Handle - h.records.Apply: %w", err)
	}

	h.logger.Info("Ingestion - Handle: record %s stored (%d bytes, %s)", ref.Key, info.Size, info.ContentType)

	return nil
}

// dimensions is best effort: any failure leaves width/height unset.
func (h *Ingestion) dimensions(ctx context.Context, ref entity.BlobRef) entity.Changes {
	if h.prober == nil {
		return nil
	}

	data, err := h.blobs.DownloadBytes(ctx, ref)
	if err != nil {
		h.logger.Warn("Ingestion - dimensions - h.blobs.DownloadBytes: %s: %v", ref, err)
		return nil
	}

	width, height, err := h.prober.Dimensions(data)
	if err != nil {
		h.logger.Warn("Ingestion - dimensions - h.prober.Dimensions: %s: %v", ref, err)
		return nil
	}

	return entity.Changes{
		entity.Set(entity.FieldWidth, width),
		entity.Set(entity.FieldHeight, height),
	}
}
