package kafka

import (
	"fmt"
	"strconv"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/segmentio/kafka-go"
)

// toRawMessage maps a Kafka record onto the transport-neutral message.
// Headers become attributes; x-receive-count defaults to 1.
func toRawMessage(msg kafka.Message) dto.RawMessage {
	attrs := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		attrs[h.Key] = string(h.Value)
	}

	count := 1
	if v, ok := attrs[dto.AttrReceiveCount]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	return dto.RawMessage{
		ID:           fmt.Sprintf("%s/%d@%d", msg.Topic, msg.Partition, msg.Offset),
		Key:          msg.Key,
		Body:         msg.Value,
		Attributes:   attrs,
		ReceiveCount: count,
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
	}
}

func toKafkaMessage(topic string, raw dto.RawMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(raw.Attributes))
	for k, v := range raw.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     raw.Key,
		Value:   raw.Body,
		Headers: headers,
	}
}
