package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

type EventProducer struct {
	*producer.Producer
	changesTopic string
}

// NewEventProducer builds the producer. changesTopic receives outbox rows.
func NewEventProducer(producer *producer.Producer, changesTopic string) *EventProducer {
	return &EventProducer{
		Producer:     producer,
		changesTopic: changesTopic,
	}
}

// SendEvents publishes change-feed rows keyed by record id, so changes of one
// record stay ordered.
func (ep *EventProducer) SendEvents(ctx context.Context, events []*entity.OutboxEvent) error {
	var msgsToSend []kafka.Message

	for _, event := range events {
		msg := kafka.Message{
			Topic: ep.changesTopic,
			Key:   []byte(event.AggregateID),
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: dto.AttrEventID, Value: []byte(event.ID.String())},
			},
		}
		msgsToSend = append(msgsToSend, msg)
	}

	if len(msgsToSend) == 0 {
		return nil
	}

	err := ep.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("EventProducer - SendEvents - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventProducer) Publish(ctx context.Context, topic string, msgs ...dto.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toKafkaMessage(topic, m))
	}

	err := ep.Writer.WriteMessages(ctx, out...)
	if err != nil {
		return fmt.Errorf("EventProducer - Publish - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}
