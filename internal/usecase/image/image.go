package image

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/repo"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/google/uuid"
)

// ImageUseCase is the producer side: it stores uploads and publishes the
// requests the pipeline consumes.
type ImageUseCase struct {
	blobs   repo.BlobRepo
	records usecase.RecordUseCase
	pub     infrastructure.Publisher

	bucket      string
	eventsTopic string

	logger logger.Interface
}

func New(
	blobs repo.BlobRepo,
	records usecase.RecordUseCase,
	pub infrastructure.Publisher,
	bucket string,
	eventsTopic string,
	l logger.Interface,
) *ImageUseCase {
	return &ImageUseCase{
		blobs:       blobs,
		records:     records,
		pub:         pub,
		bucket:      bucket,
		eventsTopic: eventsTopic,
		logger:      l,
	}
}

// UploadNewImage stores the blob under a fresh key that keeps the original
// extension and announces it. The extension is not checked here.
func (uc *ImageUseCase) UploadNewImage(
	ctx context.Context,
	data io.Reader,
	originalName string,
	contentType string,
	size int64,
) (entity.BlobRef, error) {
	ref := entity.BlobRef{
		Bucket: uc.bucket,
		Key:    uuid.New().String() + strings.ToLower(filepath.Ext(originalName)),
	}

	err := uc.blobs.Upload(ctx, ref, data, contentType, size)
	if err != nil {
		return entity.BlobRef{}, fmt.Errorf("ImageUseCase - UploadNewImage - uc.blobs.Upload: %w", err)
	}

	msg, err := blobCreatedMessage(ref, size)
	if err == nil {
		err = uc.pub.Publish(ctx, uc.eventsTopic, msg)
	}
	if err != nil {
		// nobody will ever ingest it
		deleteErr := uc.blobs.Delete(ctx, ref)
		if deleteErr != nil {
			uc.logger.Error(deleteErr, "ImageUseCase - UploadNewImage - uc.blobs.Delete")
		}
		return entity.BlobRef{}, fmt.Errorf("ImageUseCase - UploadNewImage - uc.pub.Publish: %w", err)
	}

	return ref, nil
}

func (uc *ImageUseCase) RequestMetadataUpdate(ctx context.Context, id, field, value string) error {
	msg, err := metadataMessage(id, field, value)
	if err != nil {
		return fmt.Errorf("ImageUseCase - RequestMetadataUpdate: %w", err)
	}

	err = uc.pub.Publish(ctx, uc.eventsTopic, msg)
	if err != nil {
		return fmt.Errorf("ImageUseCase - RequestMetadataUpdate - uc.pub.Publish: %w", err)
	}

	return nil
}

func (uc *ImageUseCase) RequestStatusUpdate(ctx context.Context, id string, body dto.StatusUpdateBody, date string) error {
	msg, err := statusMessage(id, body, date)
	if err != nil {
		return fmt.Errorf("ImageUseCase - RequestStatusUpdate: %w", err)
	}

	err = uc.pub.Publish(ctx, uc.eventsTopic, msg)
	if err != nil {
		return fmt.Errorf("ImageUseCase - RequestStatusUpdate - uc.pub.Publish: %w", err)
	}

	return nil
}

func (uc *ImageUseCase) GetRecord(ctx context.Context, id string) (*entity.Image, error) {
	image, err := uc.records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ImageUseCase - GetRecord: %w", err)
	}

	return image, nil
}
