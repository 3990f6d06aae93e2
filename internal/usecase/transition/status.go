package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
)

const DefaultReason = "No reason provided"

// Status records a moderation decision. status, reason and reviewDate are
// written in one statement.
type Status struct {
	records       usecase.RecordUseCase
	policy        MissingRecordPolicy
	defaultReason string

	now    func() time.Time
	logger logger.Interface
}

func NewStatus(
	records usecase.RecordUseCase,
	policy MissingRecordPolicy,
	defaultReason string,
	l logger.Interface,
) *Status {
	if defaultReason == "" {
		defaultReason = DefaultReason
	}

	return &Status{
		records:       records,
		policy:        policy,
		defaultReason: defaultReason,
		now:           time.Now,
		logger:        l,
	}
}

func (h *Status) Handle(ctx context.Context, ev entity.Event) error {
	s := ev.Status
	if s == nil {
		return fmt.Errorf("Status - Handle: event has no status")
	}

	status := s.Status
	if status == entity.StatusUnset {
		st, err := entity.ParseReviewStatus(s.Value)
		if err != nil {
			h.logger.Warn("Status - Handle: %s: %v, skipping", s.ID, err)
			return nil
		}
		status = st
	}

	reason := s.Reason
	if reason == "" {
		reason = h.defaultReason
	}

	reviewDate := s.ReviewDate
	if reviewDate == "" {
		reviewDate = h.now().UTC().Format(time.RFC3339)
	}

	changes := entity.Changes{
		entity.Set(entity.FieldStatus, status),
		entity.Set(entity.FieldReason, reason),
		entity.Set(entity.FieldReviewDate, reviewDate),
	}

	_, err := h.records.Apply(ctx, s.ID, changes, h.policy == PolicyCreate)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			h.logger.Info("Status - Handle: record %s not found, status %s not written", s.ID, status)
			return nil
		}
		return fmt.Errorf("Status - Handle - h.records.Apply: %w", err)
	}

	h.logger.Info("Status - Handle: record %s set to %s", s.ID, status)

	return nil
}
