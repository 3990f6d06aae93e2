package app

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/config"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/mail"
	"github.com/andreyxaxa/photo-pipeline/pkg/sesclient"
)

func newMailer(ctx context.Context, cfg *config.Config) (infrastructure.Mailer, error) {
	switch cfg.Notifier.Driver {
	case config.DriverShoutrrr:
		sender, err := mail.NewShoutrrrSender(cfg.Notifier.ShoutrrrURL, cfg.Notifier.Timeout)
		if err != nil {
			return nil, fmt.Errorf("app - newMailer - mail.NewShoutrrrSender: %w", err)
		}
		return sender, nil
	default:
		var opts []sesclient.Option
		if cfg.Notifier.SESEndpoint != "" {
			opts = append(opts, sesclient.Endpoint(cfg.Notifier.SESEndpoint))
		}
		if cfg.Notifier.SESAccessKey != "" {
			opts = append(opts, sesclient.StaticCredentials(cfg.Notifier.SESAccessKey, cfg.Notifier.SESSecretKey))
		}

		sc, err := sesclient.New(ctx, cfg.Notifier.SESRegion, opts...)
		if err != nil {
			return nil, fmt.Errorf("app - newMailer - sesclient.New: %w", err)
		}
		return mail.NewSESSender(sc.Client), nil
	}
}
