package sesclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type SESClient struct {
	region    string
	endpoint  string
	accessKey string
	secretKey string

	Client *sesv2.Client
}

func New(ctx context.Context, region string, opts ...Option) (*SESClient, error) {
	c := &SESClient{region: region}

	for _, opt := range opts {
		opt(c)
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(c.region),
	}
	if c.accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.accessKey, c.secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("SESClient - New - config.LoadDefaultConfig: %w", err)
	}

	c.Client = sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})

	return c, nil
}
