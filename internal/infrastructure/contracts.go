package infrastructure

import (
	"context"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
)

type (
	EventsSender interface {
		SendEvents(ctx context.Context, events []*entity.OutboxEvent) error
		Close() error
	}

	// MessageSource yields batches of messages from one topic.
	MessageSource interface {
		// FetchBatch blocks for the first message, then collects up to size
		// messages within window.
		FetchBatch(ctx context.Context, size int, window time.Duration) ([]dto.RawMessage, error)
		Commit(ctx context.Context, msgs []dto.RawMessage) error
		Topic() string
		Close() error
	}

	// Publisher writes raw messages to a topic.
	Publisher interface {
		Publish(ctx context.Context, topic string, msgs ...dto.RawMessage) error
	}

	Mailer interface {
		Send(ctx context.Context, mail dto.Mail) error
	}

	DimensionProber interface {
		Dimensions(data []byte) (width, height int, err error)
	}
)
