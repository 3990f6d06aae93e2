package image

import (
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/classify"
)

func blobCreatedMessage(ref entity.BlobRef, size int64) (dto.RawMessage, error) {
	b, err := json.Marshal(dto.BlobCreatedNotice{
		Kind:   string(entity.KindBlobCreated),
		Bucket: ref.Bucket,
		Key:    ref.Key,
		Size:   size,
	})
	if err != nil {
		return dto.RawMessage{}, fmt.Errorf("blobCreatedMessage - json.Marshal: %w", err)
	}

	return dto.RawMessage{
		Key:        []byte(ref.Key),
		Body:       b,
		Attributes: map[string]string{classify.AttrKind: string(entity.KindBlobCreated)},
	}, nil
}

// metadataMessage carries the field name out of band, as metadata producers do.
func metadataMessage(id, field, value string) (dto.RawMessage, error) {
	b, err := json.Marshal(dto.MetadataUpdateRequest{ID: id, Value: value})
	if err != nil {
		return dto.RawMessage{}, fmt.Errorf("metadataMessage - json.Marshal: %w", err)
	}

	return dto.RawMessage{
		Key:        []byte(id),
		Body:       b,
		Attributes: map[string]string{classify.AttrMetadataType: field},
	}, nil
}

// statusMessage is recognized by its update.status shape.
func statusMessage(id string, body dto.StatusUpdateBody, date string) (dto.RawMessage, error) {
	b, err := json.Marshal(dto.StatusUpdateRequest{ID: id, Date: date, Update: body})
	if err != nil {
		return dto.RawMessage{}, fmt.Errorf("statusMessage - json.Marshal: %w", err)
	}

	return dto.RawMessage{Key: []byte(id), Body: b}, nil
}
