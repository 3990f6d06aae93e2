package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/photo-pipeline/config"
	kafkactrl "github.com/andreyxaxa/photo-pipeline/internal/controller/kafka"
	"github.com/andreyxaxa/photo-pipeline/internal/controller/restapi"
	"github.com/andreyxaxa/photo-pipeline/internal/controller/worker/outbox"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	infrakafka "github.com/andreyxaxa/photo-pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/processor"
	"github.com/andreyxaxa/photo-pipeline/internal/repo/persistent"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/classify"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/image"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/outcome"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/pipeline"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/record"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/transition"
	"github.com/andreyxaxa/photo-pipeline/pkg/httpserver"
	"github.com/andreyxaxa/photo-pipeline/pkg/kafka/consumer"
	"github.com/andreyxaxa/photo-pipeline/pkg/kafka/producer"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/postgres"
	"github.com/andreyxaxa/photo-pipeline/pkg/s3client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	stageEvents      = "events"
	stageDeadLetters = "dead_letters"
	stageChanges     = "changes"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - metrics.NewPipelineMetrics: %w", err))
	}

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
		s3client.ProbeBucket(cfg.S3.Bucket),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}
	blobs := persistent.NewBlobRepo(s3c)

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// Use-Case

	// record use-case
	records := record.New(
		persistent.NewImageRecordRepo(pg),
		persistent.NewOutboxRepo(pg),
		pg,
		cfg.OutboxRelay.Retention,
		l,
	)

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, producer.AutoCreateTopics(cfg.Kafka.AutoCreate))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}
	eventProducer := infrakafka.NewEventProducer(kafkaProducer, cfg.Kafka.ChangesTopic)

	// image use-case
	imageUseCase := image.New(blobs, records, eventProducer, cfg.S3.Bucket, cfg.Kafka.EventsTopic, l)

	// pipeline use-case
	classifier := classify.New()

	gate, err := pipeline.NewGate(pipeline.GateConfig{
		AllowedExtensions: cfg.Pipeline.AllowedExtensions,
		MetadataFields:    cfg.Pipeline.MetadataFields,
		StatusValues:      cfg.Pipeline.StatusValues,
	})
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - pipeline.NewGate: %w", err))
	}

	metadataPolicy, err := transition.ParseMissingRecordPolicy(cfg.Pipeline.MetadataMissingRecord)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - transition.ParseMissingRecordPolicy: %w", err))
	}
	statusPolicy, err := transition.ParseMissingRecordPolicy(cfg.Pipeline.StatusMissingRecord)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - transition.ParseMissingRecordPolicy: %w", err))
	}

	var prober infrastructure.DimensionProber
	if cfg.Pipeline.ProbeDimensions {
		prober = processor.New()
	}

	router := pipeline.NewRouter(
		transition.NewIngestion(records, blobs, prober, l),
		transition.NewMetadata(records, metadataPolicy, l),
		transition.NewStatus(records, statusPolicy, cfg.Pipeline.DefaultReason, l),
		transition.NewCleanup(blobs, classifier, cfg.Pipeline.CleanupHeuristicDelete, m, l),
		l,
	)

	eventsPipeline := pipeline.New(stageEvents, classifier.Classify, gate, router, m, l)
	deadLetterPipeline := pipeline.New(stageDeadLetters, classifier.ClassifyDeadLetter, gate, router, m, l)

	// outcome use-case
	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - newMailer: %w", err))
	}
	notifier, err := outcome.New(records, mailer, outcome.Config{
		Sender:           cfg.Notifier.Sender,
		DefaultRecipient: cfg.Notifier.DefaultRecipient,
		SendTimeout:      cfg.Notifier.Timeout,
		DedupeTTL:        cfg.Notifier.DedupeTTL,
	}, m, l)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - outcome.New: %w", err))
	}

	// Outbox Relay Worker
	outboxRelayWorker := outbox.New(records, eventProducer, outbox.Config{
		PollInterval:        cfg.OutboxRelay.PollInterval,
		CleanupInterval:     cfg.OutboxRelay.CleanupInterval,
		MarkFailedInterval:  cfg.OutboxRelay.MarkFailedInterval,
		ProcessBatchTimeout: cfg.OutboxRelay.ProcessBatchTimeout,
		BatchSize:           cfg.OutboxRelay.BatchSize,
		MaxRetries:          cfg.OutboxRelay.MaxRetries,
	}, m, l)

	// Kafka as Controller
	ctrlCfg := kafkactrl.Config{
		BatchSize:       cfg.KafkaController.BatchSize,
		BatchWindow:     cfg.KafkaController.BatchWindow,
		CommitTimeout:   cfg.KafkaController.CommitTimeout,
		ProcessTimeout:  cfg.KafkaController.ProcessTimeout,
		RedeliveryDelay: cfg.KafkaController.RedeliveryDelay,
		MaxReceiveCount: cfg.KafkaController.MaxReceiveCount,
		Workers:         cfg.KafkaController.Workers,

		PublishRetryBackoff: cfg.KafkaController.PublishBackoff,
	}

	controllers := make([]*kafkactrl.KafkaController, 0, 3)
	for _, s := range []struct {
		stage      string
		topic      string
		prc        usecase.BatchProcessor
		deadLetter string
	}{
		{stageEvents, cfg.Kafka.EventsTopic, eventsPipeline, cfg.Kafka.DeadLetterTopic},
		{stageDeadLetters, cfg.Kafka.DeadLetterTopic, deadLetterPipeline, ""},
		{stageChanges, cfg.Kafka.ChangesTopic, notifier, ""},
	} {
		kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-"+s.stage, s.topic)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
		}

		c := ctrlCfg
		c.DeadLetterTopic = s.deadLetter
		controllers = append(controllers, kafkactrl.New(
			s.stage,
			s.prc,
			infrakafka.NewEventConsumer(kafkaConsumer),
			eventProducer,
			c,
			m,
			l,
		))
	}

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.BodyLimit(cfg.HTTP.BodyLimit),
	)
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}
	restapi.NewRouter(httpServer.App, imageUseCase, gatherer, l)

	// Start Components
	err = outboxRelayWorker.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - outboxRelayWorker.Start: %w", err))
	}
	for _, c := range controllers {
		err = c.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	for _, c := range controllers {
		kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
		err = c.Shutdown(kcShutdownCtx)
		kcShutdownCancel()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
		}
	}

	orlShutdownCtx, orlShutdownCancel := context.WithTimeout(ctx, cfg.OutboxRelay.ShutdownTimeout)
	defer orlShutdownCancel()
	err = outboxRelayWorker.Shutdown(orlShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - outboxRelayWorker.Shutdown: %w", err))
	}

	err = eventProducer.Close()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - eventProducer.Close: %w", err))
	}
}
