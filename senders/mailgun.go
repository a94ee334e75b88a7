package senders

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type mailgunSender struct {
	base
	mg      *mailgun.MailgunImpl
	timeout time.Duration
}

func newMailgunSender(b base) *mailgunSender {
	mg := mailgun.NewMailgun(b.cfg.Mailgun.Domain, b.cfg.Mailgun.APIKey)
	mg.Client().Transport = b.transport

	timeout := time.Duration(b.cfg.Mailgun.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &mailgunSender{b, mg, timeout}
}

func (e *mailgunSender) Send(ctx context.Context, recipient string, msg *Message) (string, error) {
	if _, err := mail.ParseAddress(recipient); err != nil {
		return "", fmt.Errorf("invalid email recipient %q: %w", recipient, err)
	}

	ef := newDigestEmail(msg)

	// Plain text part first, SetHtml adds the html alternative.
	message := e.mg.NewMessage(e.cfg.Mailgun.SenderFrom, ef.Subject(), ef.PlainText(), recipient)
	message.SetHtml(ef.Body())
	if err := message.AddTag("digest"); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	_, id, err := e.mg.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	e.log.Sugar().Debugw("Sent digest email", "message_id", id)
	return id, nil
}
