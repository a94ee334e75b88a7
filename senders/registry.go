package senders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender delivers a message to a platform-specific recipient and returns
// the platform's message id. A nil error means the platform accepted it.
type Sender interface {
	Send(ctx context.Context, recipient string, msg *Message) (string, error)
}

// Registry maps a notifier platform to its sender.
type Registry map[string]Sender

func (r Registry) For(platform string) (Sender, error) {
	sender, ok := r[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported notifier platform: %s", platform)
	}
	return sender, nil
}

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) (Registry, error) {
	base := base{log, cfg, transport}
	registry := Registry{}

	if cfg.Telegram.Token != "" {
		tg, err := newTelegramSender(base)
		if err != nil {
			return nil, err
		}
		registry[models.PlatformTelegram] = tg
	} else {
		log.Sugar().Info("Telegram sender disabled since TELEGRAM_TOKEN is not set")
	}

	if cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != "" {
		registry[models.PlatformEmail] = newMailgunSender(base)
	} else {
		log.Sugar().Info("Email sender disabled since mailgun is not configured")
	}

	return registry, nil
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
