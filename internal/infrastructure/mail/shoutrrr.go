package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrSender delivers through a shoutrrr service URL. For smtp:// URLs
// the recipient and sender of each mail override the URL's defaults; other
// services get the plain-text body.
type ShoutrrrSender struct {
	sender *router.ServiceRouter
	smtp   bool
}

func NewShoutrrrSender(serviceURL string, timeout time.Duration) (*ShoutrrrSender, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("ShoutrrrSender - New - url.Parse: invalid service URL")
	}

	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		// the URL may carry credentials
		return nil, fmt.Errorf("ShoutrrrSender - New - shoutrrr.CreateSender: %s service rejected", u.Scheme)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrSender{sender: sender, smtp: u.Scheme == "smtp"}, nil
}

func (s *ShoutrrrSender) Send(_ context.Context, mail dto.Mail) error {
	params := stypes.Params{}
	params.SetTitle(mail.Subject)
	if s.smtp {
		params["toaddresses"] = mail.To
		params["fromaddress"] = mail.From
	}

	for _, err := range s.sender.Send(mail.Text, &params) {
		if err != nil {
			return fmt.Errorf("ShoutrrrSender - Send - s.sender.Send: %w", err)
		}
	}

	return nil
}
