package mail

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charset = "UTF-8"

// SESAPI is the part of *sesv2.Client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESSender struct {
	client SESAPI
}

func NewSESSender(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

func (s *SESSender) Send(ctx context.Context, mail dto.Mail) error {
	body := &types.Body{}
	if mail.HTML != "" {
		body.Html = &types.Content{Data: aws.String(mail.HTML), Charset: aws.String(charset)}
	}
	if mail.Text != "" {
		body.Text = &types.Content{Data: aws.String(mail.Text), Charset: aws.String(charset)}
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(mail.From),
		Destination:      &types.Destination{ToAddresses: []string{mail.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(mail.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SESSender - Send - s.client.SendEmail: %w", err)
	}

	return nil
}
