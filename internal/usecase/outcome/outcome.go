package outcome

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/k3a/html2text"
	"github.com/patrickmn/go-cache"
)

const (
	subjectPrefix   = "Photo Status Update: "
	defaultName     = "Photographer"
	defaultReason   = "No reason provided"
	colorPass       = "green"
	colorReject     = "red"
	_defaultDedupe  = 10 * time.Minute
	_defaultTimeout = 10 * time.Second
)

//go:embed templates/status.html
var templates embed.FS

// RecordReader reads the current state of a record.
type RecordReader interface {
	Get(ctx context.Context, id string) (*entity.Image, error)
}

type Config struct {
	Sender           string
	DefaultRecipient string
	SendTimeout      time.Duration
	DedupeTTL        time.Duration
}

// Notifier mails the photographer when a record's status changes.
type Notifier struct {
	records RecordReader
	mailer  infrastructure.Mailer

	sender           string
	defaultRecipient string
	sendTimeout      time.Duration

	tmpl *template.Template
	seen *cache.Cache

	metrics *metrics.PipelineMetrics
	logger  logger.Interface
}

func New(
	records RecordReader,
	mailer infrastructure.Mailer,
	cfg Config,
	m *metrics.PipelineMetrics,
	l logger.Interface,
) (*Notifier, error) {
	if cfg.Sender == "" {
		return nil, fmt.Errorf("Notifier - New: empty sender")
	}

	tmpl, err := template.ParseFS(templates, "templates/status.html")
	if err != nil {
		return nil, fmt.Errorf("Notifier - New - template.ParseFS: %w", err)
	}

	recipient := cfg.DefaultRecipient
	if recipient == "" {
		recipient = cfg.Sender
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = _defaultDedupe
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = _defaultTimeout
	}

	return &Notifier{
		records:          records,
		mailer:           mailer,
		sender:           cfg.Sender,
		defaultRecipient: recipient,
		sendTimeout:      timeout,
		tmpl:             tmpl,
		seen:             cache.New(ttl, 2*ttl),
		metrics:          m,
		logger:           l,
	}, nil
}

// ProcessBatch handles change-feed messages. Only a failing record read is
// retried; everything else completes the message.
func (n *Notifier) ProcessBatch(ctx context.Context, msgs []dto.RawMessage) []dto.Result {
	results := make([]dto.Result, len(msgs))

	for i, msg := range msgs {
		results[i] = n.process(ctx, msg)
		n.metrics.Message("changes", results[i].Outcome.String())
	}

	return results
}

func (n *Notifier) process(ctx context.Context, msg dto.RawMessage) dto.Result {
	var change entity.RecordChange
	if err := json.Unmarshal(msg.Body, &change); err != nil || change.Keys.ID == "" {
		n.logger.Warn("Notifier - process: message %s is not a record change, dropped", msg.ID)
		return dto.Result{Outcome: dto.Dropped}
	}

	eventID := msg.Attr(dto.AttrEventID)
	if eventID != "" {
		if _, dup := n.seen.Get(eventID); dup {
			n.logger.Debug("Notifier - process: change %s already handled", eventID)
			n.metrics.Notification("duplicate")
			return dto.Result{Outcome: dto.Done}
		}
	}

	if err := n.Handle(ctx, change); err != nil {
		return dto.Result{Outcome: dto.Retry, Err: err}
	}

	if eventID != "" {
		n.seen.SetDefault(eventID, struct{}{})
	}

	return dto.Result{Outcome: dto.Done}
}

// Handle sends one notification if the change set a new status. Mail
// failures are logged, not returned.
func (n *Notifier) Handle(ctx context.Context, change entity.RecordChange) error {
	if !change.StatusChanged() {
		n.metrics.Notification("ignored")
		return nil
	}

	image, err := n.records.Get(ctx, change.Keys.ID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			n.logger.Warn("Notifier - Handle: record %s not found, no notification", change.Keys.ID)
			n.metrics.Notification("no_record")
			return nil
		}
		return fmt.Errorf("Notifier - Handle - n.records.Get: %w", err)
	}

	mail, err := n.Compose(image, change.NewImage.Status)
	if err != nil {
		n.logger.Error(err, "Notifier - Handle - n.Compose")
		n.metrics.Notification("failed")
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	if err := n.mailer.Send(sendCtx, mail); err != nil {
		n.logger.Error(err, "Notifier - Handle - n.mailer.Send")
		n.metrics.Notification("failed")
		return nil
	}

	n.logger.Info("Notifier - Handle: %s notified about %s (%s)", mail.To, image.ID, change.NewImage.Status)
	n.metrics.Notification("sent")

	return nil
}

type view struct {
	ID         string
	Name       string
	Caption    string
	Status     entity.ReviewStatus
	Color      string
	Reason     string
	ReviewDate string
}

// Compose builds the notification for a record and the status it moved to.
func (n *Notifier) Compose(image *entity.Image, status entity.ReviewStatus) (dto.Mail, error) {
	v := view{
		ID:         image.ID,
		Name:       image.NameOrEmpty(),
		Caption:    image.CaptionOrEmpty(),
		Status:     status,
		Color:      colorReject,
		Reason:     image.ReasonOrEmpty(),
		ReviewDate: image.ReviewDateOrEmpty(),
	}
	if v.Name == "" {
		v.Name = defaultName
	}
	if v.Reason == "" {
		v.Reason = defaultReason
	}
	if status == entity.StatusPass {
		v.Color = colorPass
	}

	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, v); err != nil {
		return dto.Mail{}, fmt.Errorf("Notifier - Compose - n.tmpl.Execute: %w", err)
	}

	to := image.EmailOrEmpty()
	if to == "" {
		to = n.defaultRecipient
	}

	html := buf.String()

	return dto.Mail{
		From:    n.sender,
		To:      to,
		Subject: subjectPrefix + string(status),
		HTML:    html,
		Text:    html2text.HTML2Text(html),
	}, nil
}
