package transition

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
)

// Metadata writes one metadata field and leaves every other field alone.
type Metadata struct {
	records usecase.RecordUseCase
	policy  MissingRecordPolicy
	logger  logger.Interface
}

func NewMetadata(records usecase.RecordUseCase, policy MissingRecordPolicy, l logger.Interface) *Metadata {
	return &Metadata{
		records: records,
		policy:  policy,
		logger:  l,
	}
}

func (h *Metadata) Handle(ctx context.Context, ev entity.Event) error {
	m := ev.Metadata
	if m == nil {
		return fmt.Errorf("Metadata - Handle: event has no metadata")
	}

	field := m.Field
	if field == "" {
		f, ok := entity.MetadataField(m.Name)
		if !ok {
			h.logger.Warn("Metadata - Handle: unknown field %q for %s, skipping", m.Name, m.ID)
			return nil
		}
		field = f
	}

	_, err := h.records.Apply(ctx, m.ID, entity.Changes{entity.Set(field, m.Value)}, h.policy == PolicyCreate)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			h.logger.Info("Metadata - Handle: record %s not found, %s not written", m.ID, field)
			return nil
		}
		return fmt.Errorf("Metadata - Handle - h.records.Apply: %w", err)
	}

	return nil
}
