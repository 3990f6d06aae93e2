package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

const (
	_fetchErrorBackoff   = time.Second
	_publishRetryBackoff = time.Second
)

type Config struct {
	BatchSize       int
	BatchWindow     time.Duration
	CommitTimeout   time.Duration
	ProcessTimeout  time.Duration
	RedeliveryDelay time.Duration
	MaxReceiveCount int
	// Workers above one settle batches concurrently, so a later batch can be
	// committed while an earlier one is still waiting to publish.
	Workers             int
	PublishRetryBackoff time.Duration
	// DeadLetterTopic receives exhausted and escalated messages. Empty means
	// they are logged and discarded.
	DeadLetterTopic string
}

// KafkaController feeds batches from one topic to a processor and settles
// every per-message result: retries are republished with a bumped receive
// count, exhausted and escalated messages go to the dead-letter topic, and
// the batch is committed once all of that is published.
type KafkaController struct {
	name   string
	prc    usecase.BatchProcessor
	src    infrastructure.MessageSource
	pub    infrastructure.Publisher
	cfg    Config
	logger logger.Interface

	metrics *metrics.PipelineMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	name string,
	prc usecase.BatchProcessor,
	src infrastructure.MessageSource,
	pub infrastructure.Publisher,
	cfg Config,
	m *metrics.PipelineMetrics,
	l logger.Interface,
) *KafkaController {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = 1
	}
	if cfg.PublishRetryBackoff <= 0 {
		cfg.PublishRetryBackoff = _publishRetryBackoff
	}

	return &KafkaController{
		name:    name,
		prc:     prc,
		src:     src,
		pub:     pub,
		cfg:     cfg,
		metrics: m,
		logger:  l,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - %s controller already started", c.name)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	batches := make(chan []dto.RawMessage, c.cfg.Workers)

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(batches)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(batches)

		for {
			batch, err := c.src.FetchBatch(c.ctx, c.cfg.BatchSize, c.cfg.BatchWindow)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Error(err, "KafkaController - Start - c.src.FetchBatch")

				select {
				case <-c.ctx.Done():
					return
				case <-time.After(_fetchErrorBackoff):
				}
				continue
			}

			select {
			case batches <- batch:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (c *KafkaController) worker(batches <-chan []dto.RawMessage) {
	defer c.wg.Done()

	for batch := range batches {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			c.handle(batch)
		}()
	}
}

func (c *KafkaController) handle(batch []dto.RawMessage) {
	processCtx, processCancel := context.WithTimeout(c.ctx, c.cfg.ProcessTimeout)
	results := c.prc.ProcessBatch(processCtx, batch)
	processCancel()

	if len(results) != len(batch) {
		c.logger.Error(
			fmt.Errorf("%d results for %d messages", len(results), len(batch)),
			"KafkaController - handle - c.prc.ProcessBatch",
		)
		return
	}

	dead, retries := c.settle(batch, results)

	if len(retries) > 0 && c.cfg.RedeliveryDelay > 0 {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.RedeliveryDelay):
		}
	}

	// Commits are cumulative per partition, so a batch that is not fully
	// published must hold the worker until it is, or until shutdown.
	for attempt := 1; ; attempt++ {
		err := c.deliver(&dead, &retries)
		if err == nil {
			break
		}
		c.logger.Error(err, fmt.Sprintf("KafkaController - handle - c.deliver, attempt %d", attempt))

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.PublishRetryBackoff):
		}
	}

	commitCtx, commitCancel := context.WithTimeout(c.ctx, c.cfg.CommitTimeout)
	err := c.src.Commit(commitCtx, batch)
	commitCancel()
	if err != nil {
		c.logger.Error(err, "KafkaController - handle - c.src.Commit")
	}
}

// settle sorts per-message results into dead letters and redeliveries.
func (c *KafkaController) settle(batch []dto.RawMessage, results []dto.Result) (dead, retries []dto.RawMessage) {
	for i, res := range results {
		msg := batch[i]

		switch res.Outcome {
		case dto.Escalated:
			if c.cfg.DeadLetterTopic == "" {
				c.logger.Error(
					fmt.Errorf("%d escalated messages", len(res.DeadLetters)),
					fmt.Sprintf("KafkaController - %s - no dead-letter topic, discarded", c.name),
				)
				continue
			}
			for _, dl := range res.DeadLetters {
				dead = append(dead, withSource(dl, msg))
			}

		case dto.Retry:
			c.logger.Error(res.Err, fmt.Sprintf("KafkaController - %s - message %s, receive %d", c.name, msg.ID, msg.ReceiveCount))

			if msg.ReceiveCount < c.cfg.MaxReceiveCount {
				retries = append(retries, redelivery(msg))
				c.metrics.Redelivery(c.name, "retry")
				continue
			}

			if c.cfg.DeadLetterTopic == "" {
				c.logger.Error(res.Err, fmt.Sprintf("KafkaController - %s - message %s exhausted, discarded", c.name, msg.ID))
				c.metrics.Redelivery(c.name, "discard")
				continue
			}

			dead = append(dead, deadLetter(msg, res.Err))
			c.metrics.Redelivery(c.name, "dead_letter")
		}
	}

	return dead, retries
}

// deliver publishes whatever is still pending and clears each group once it
// is out, so a later attempt does not duplicate it.
func (c *KafkaController) deliver(dead, retries *[]dto.RawMessage) error {
	if len(*dead) > 0 {
		if err := c.publish(c.cfg.DeadLetterTopic, *dead); err != nil {
			return err
		}
		*dead = nil
	}

	if len(*retries) > 0 {
		if err := c.publish(c.src.Topic(), *retries); err != nil {
			return err
		}
		*retries = nil
	}

	return nil
}

func (c *KafkaController) publish(topic string, msgs []dto.RawMessage) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ProcessTimeout)
	defer cancel()

	if err := c.pub.Publish(ctx, topic, msgs...); err != nil {
		return fmt.Errorf("KafkaController - publish - c.pub.Publish(%s): %w", topic, err)
	}

	return nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+3)
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func redelivery(msg dto.RawMessage) dto.RawMessage {
	attrs := copyAttrs(msg.Attributes)
	attrs[dto.AttrReceiveCount] = strconv.Itoa(msg.ReceiveCount + 1)

	return dto.RawMessage{Key: msg.Key, Body: msg.Body, Attributes: attrs}
}

func deadLetter(msg dto.RawMessage, cause error) dto.RawMessage {
	attrs := copyAttrs(msg.Attributes)
	attrs[dto.AttrReceiveCount] = "1"
	attrs[dto.AttrSourceTopic] = msg.Topic
	attrs[dto.AttrSourceID] = msg.ID
	if cause != nil {
		attrs[dto.AttrDeadLetterReason] = cause.Error()
	} else {
		attrs[dto.AttrDeadLetterReason] = "receive count exhausted"
	}

	return dto.RawMessage{Key: msg.Key, Body: msg.Body, Attributes: attrs}
}

func withSource(dl, src dto.RawMessage) dto.RawMessage {
	attrs := copyAttrs(dl.Attributes)
	attrs[dto.AttrSourceTopic] = src.Topic
	if _, ok := attrs[dto.AttrSourceID]; !ok {
		attrs[dto.AttrSourceID] = src.ID
	}
	dl.Attributes = attrs

	return dl
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.src.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(fmt.Errorf("KafkaController - Shutdown - %s", c.name), ctx.Err())
	}
}
