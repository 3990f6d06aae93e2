package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		OutboxRelay     OutboxRelay
		Kafka           Kafka
		KafkaController KafkaController
		Pipeline        Pipeline
		Notifier        Notifier
		Metrics         Metrics
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required,notEmpty"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		BodyLimit      int    `env:"HTTP_BODY_LIMIT" envDefault:"12582912"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required,notEmpty"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required,notEmpty"`
	}

	// S3 credentials are optional: empty keys use the default AWS chain, an
	// empty endpoint means AWS itself.
	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET,required,notEmpty"`
		UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers         []string `env:"KAFKA_BROKERS,required"`
		GroupID         string   `env:"KAFKA_GROUP_ID,required,notEmpty"`
		EventsTopic     string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"photo-events"`
		DeadLetterTopic string   `env:"KAFKA_DEAD_LETTER_TOPIC" envDefault:"photo-events-dlq"`
		ChangesTopic    string   `env:"KAFKA_CHANGES_TOPIC" envDefault:"photo-record-changes"`
		AutoCreate      bool     `env:"KAFKA_AUTO_CREATE_TOPICS" envDefault:"true"`
	}

	OutboxRelay struct {
		PollInterval        time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"2s"`
		MarkFailedInterval  time.Duration `env:"OUTBOX_RELAY_MARK_FAILED_INTERVAL" envDefault:"2m"`
		CleanupInterval     time.Duration `env:"OUTBOX_RELAY_CLEANUP_INTERVAL" envDefault:"24h"`
		Retention           time.Duration `env:"OUTBOX_RELAY_RETENTION" envDefault:"168h"`
		ProcessBatchTimeout time.Duration `env:"OUTBOX_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"OUTBOX_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
		MaxRetries          int           `env:"OUTBOX_RELAY_MAX_RETRIES" envDefault:"3"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"30s"` // whole batch, store and blob calls included
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize       int           `env:"KAFKA_CONTROLLER_BATCH_SIZE" envDefault:"5"`
		BatchWindow     time.Duration `env:"KAFKA_CONTROLLER_BATCH_WINDOW" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"1"`
		MaxReceiveCount int           `env:"KAFKA_CONTROLLER_MAX_RECEIVE_COUNT" envDefault:"3"`
		RedeliveryDelay time.Duration `env:"KAFKA_CONTROLLER_REDELIVERY_DELAY" envDefault:"1s"`
		PublishBackoff  time.Duration `env:"KAFKA_CONTROLLER_PUBLISH_BACKOFF" envDefault:"1s"`
	}

	Pipeline struct {
		AllowedExtensions      []string `env:"PIPELINE_ALLOWED_EXTENSIONS" envDefault:".jpg,.jpeg,.png"`
		MetadataFields         []string `env:"PIPELINE_METADATA_FIELDS" envDefault:"caption,reviewDate,photographerName,photographerEmail"`
		StatusValues           []string `env:"PIPELINE_STATUS_VALUES" envDefault:"Pass,Reject"`
		MetadataMissingRecord  string   `env:"PIPELINE_METADATA_MISSING_RECORD" envDefault:"create"`
		StatusMissingRecord    string   `env:"PIPELINE_STATUS_MISSING_RECORD" envDefault:"skip"`
		DefaultReason          string   `env:"PIPELINE_DEFAULT_REASON" envDefault:"No reason provided"`
		ProbeDimensions        bool     `env:"PIPELINE_PROBE_DIMENSIONS" envDefault:"false"`
		CleanupHeuristicDelete bool     `env:"PIPELINE_CLEANUP_HEURISTIC_DELETE" envDefault:"false"`
	}

	Notifier struct {
		Driver           string        `env:"NOTIFIER_DRIVER" envDefault:"ses"`
		Sender           string        `env:"NOTIFIER_SENDER,required,notEmpty"`
		DefaultRecipient string        `env:"NOTIFIER_DEFAULT_RECIPIENT"`
		SESRegion        string        `env:"NOTIFIER_SES_REGION" envDefault:"us-east-1"`
		SESEndpoint      string        `env:"NOTIFIER_SES_ENDPOINT"`
		SESAccessKey     string        `env:"NOTIFIER_SES_ACCESS_KEY"`
		SESSecretKey     string        `env:"NOTIFIER_SES_SECRET_KEY"`
		ShoutrrrURL      string        `env:"NOTIFIER_SHOUTRRR_URL"`
		Timeout          time.Duration `env:"NOTIFIER_TIMEOUT" envDefault:"10s"`
		DedupeTTL        time.Duration `env:"NOTIFIER_DEDUPE_TTL" envDefault:"10m"`
	}

	Metrics struct {
		Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
)

const (
	DriverSES      = "ses"
	DriverShoutrrr = "shoutrrr"
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]string{
		"PIPELINE_METADATA_MISSING_RECORD": c.Pipeline.MetadataMissingRecord,
		"PIPELINE_STATUS_MISSING_RECORD":   c.Pipeline.StatusMissingRecord,
	} {
		if v != "create" && v != "skip" {
			return fmt.Errorf("%s must be create or skip, got %q", name, v)
		}
	}

	switch c.Notifier.Driver {
	case DriverSES:
	case DriverShoutrrr:
		if c.Notifier.ShoutrrrURL == "" {
			return fmt.Errorf("NOTIFIER_SHOUTRRR_URL is required for the shoutrrr driver")
		}
	default:
		return fmt.Errorf("NOTIFIER_DRIVER must be %s or %s, got %q", DriverSES, DriverShoutrrr, c.Notifier.Driver)
	}

	if c.Notifier.DefaultRecipient == "" {
		c.Notifier.DefaultRecipient = c.Notifier.Sender
	}

	if c.KafkaController.BatchSize < 1 {
		return fmt.Errorf("KAFKA_CONTROLLER_BATCH_SIZE must be positive")
	}
	if c.KafkaController.MaxReceiveCount < 1 {
		return fmt.Errorf("KAFKA_CONTROLLER_MAX_RECEIVE_COUNT must be positive")
	}

	return nil
}
