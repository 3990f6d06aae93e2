package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/classify"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

// ClassifyFunc normalizes one transport message.
type ClassifyFunc func(dto.RawMessage) classify.Result

// Pipeline runs a batch through classify, gate and route. Messages are
// independent: each gets its own result and a failure never stops the batch.
type Pipeline struct {
	stage    string
	classify ClassifyFunc
	gate     *Gate
	router   *Router

	metrics *metrics.PipelineMetrics
	logger  logger.Interface
}

func New(
	stage string,
	classify ClassifyFunc,
	gate *Gate,
	router *Router,
	m *metrics.PipelineMetrics,
	l logger.Interface,
) *Pipeline {
	return &Pipeline{
		stage:    stage,
		classify: classify,
		gate:     gate,
		router:   router,
		metrics:  m,
		logger:   l,
	}
}

func (p *Pipeline) ProcessBatch(ctx context.Context, msgs []dto.RawMessage) []dto.Result {
	results := make([]dto.Result, len(msgs))

	for i, msg := range msgs {
		results[i] = p.process(ctx, msg)
		p.metrics.Message(p.stage, results[i].Outcome.String())
	}

	return results
}

func (p *Pipeline) process(ctx context.Context, msg dto.RawMessage) (res dto.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = dto.Result{
				Outcome: dto.Retry,
				Err:     fmt.Errorf("Pipeline - process - panic: %v", r),
			}
		}
	}()

	c := p.classify(msg)
	if c.Malformed {
		p.logger.Warn("Pipeline - %s - message %s dropped: %s", p.stage, msg.ID, c.Reason)
		return dto.Result{Outcome: dto.Dropped}
	}

	var (
		accepted    int
		deadLetters []dto.RawMessage
	)

	for _, ev := range c.Events {
		checked, verdict, reason := p.gate.Check(ev)
		p.metrics.Event(string(ev.Kind), verdict.String())

		switch verdict {
		case Drop:
			p.logger.Warn("Pipeline - %s - message %s: %s event dropped: %s", p.stage, msg.ID, ev.Kind, reason)
			continue
		case Escalate:
			p.logger.Warn("Pipeline - %s - message %s: %s event escalated: %s", p.stage, msg.ID, ev.Kind, reason)
			dl, err := escalation(msg, checked, reason)
			if err != nil {
				return dto.Result{Outcome: dto.Retry, Err: err}
			}
			deadLetters = append(deadLetters, dl)
			continue
		}

		accepted++

		if err := p.router.Route(ctx, checked); err != nil {
			return dto.Result{
				Outcome: dto.Retry,
				Err:     fmt.Errorf("Pipeline - %s - message %s: %w", p.stage, msg.ID, err),
			}
		}
	}

	switch {
	case len(deadLetters) > 0:
		return dto.Result{Outcome: dto.Escalated, DeadLetters: deadLetters}
	case accepted == 0:
		return dto.Result{Outcome: dto.Dropped}
	default:
		return dto.Result{Outcome: dto.Done}
	}
}

// escalation builds the dead-letter message that asks Cleanup to remove an
// escalated blob.
func escalation(src dto.RawMessage, ev entity.Event, reason string) (dto.RawMessage, error) {
	if ev.Blob == nil {
		return dto.RawMessage{}, fmt.Errorf("Pipeline - escalation: %s event has no blob", ev.Kind)
	}

	body, err := json.Marshal(dto.BlobCreatedNotice{
		Kind:   string(entity.KindBlobCreated),
		Bucket: ev.Blob.Bucket,
		Key:    ev.Blob.Key,
		Size:   ev.Blob.Size,
	})
	if err != nil {
		return dto.RawMessage{}, fmt.Errorf("Pipeline - escalation - json.Marshal: %w", err)
	}

	return dto.RawMessage{
		Key:  []byte(ev.Blob.Key),
		Body: body,
		Attributes: map[string]string{
			classify.AttrKind:        string(entity.KindBlobCreated),
			classify.AttrBucket:      ev.Blob.Bucket,
			classify.AttrKey:         ev.Blob.Key,
			dto.AttrDeadLetterReason: reason,
			dto.AttrSourceID:         src.ID,
			dto.AttrReceiveCount:     strconv.Itoa(1),
		},
	}, nil
}
