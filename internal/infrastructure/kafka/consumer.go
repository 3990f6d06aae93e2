package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

type EventConsumer struct {
	*consumer.Consumer
}

func NewEventConsumer(consumer *consumer.Consumer) *EventConsumer {
	return &EventConsumer{consumer}
}

func (ec *EventConsumer) FetchBatch(ctx context.Context, size int, window time.Duration) ([]dto.RawMessage, error) {
	first, err := ec.Reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("EventConsumer - FetchBatch - ec.Reader.FetchMessage: %w", err)
	}

	batch := []dto.RawMessage{toRawMessage(first)}

	windowCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	for len(batch) < size {
		msg, err := ec.Reader.FetchMessage(windowCtx)
		if err != nil {
			// window elapsed or shutting down; hand over what we have
			break
		}
		batch = append(batch, toRawMessage(msg))
	}

	return batch, nil
}

func (ec *EventConsumer) Commit(ctx context.Context, msgs []dto.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	toCommit := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		toCommit = append(toCommit, kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset})
	}

	err := ec.Reader.CommitMessages(ctx, toCommit...)
	if err != nil {
		return fmt.Errorf("EventConsumer - Commit - ec.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ec *EventConsumer) Close() error {
	err := ec.Consumer.Close()
	if err != nil {
		return fmt.Errorf("EventConsumer - Close: %w", err)
	}

	return nil
}
