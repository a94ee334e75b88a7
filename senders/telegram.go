package senders

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

type telegramSender struct {
	base
	bot     *tele.Bot
	limiter *rate.Limiter
}

func newTelegramSender(b base) (*telegramSender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   b.cfg.Telegram.Token,
		Client:  &http.Client{Transport: b.transport, Timeout: 30 * time.Second},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	rps := b.cfg.Telegram.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &telegramSender{
		base:    b,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (s *telegramSender) Send(ctx context.Context, recipient string, msg *Message) (string, error) {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram: invalid chat id %q", recipient)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	sent, err := s.bot.Send(tele.ChatID(chatID), msg.Body, sendOptions(msg))
	if err != nil {
		return "", fmt.Errorf("telegram: %w", err)
	}
	return strconv.Itoa(sent.ID), nil
}

func sendOptions(msg *Message) *tele.SendOptions {
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	if msg.NextPage != nil {
		opts.ReplyMarkup = &tele.ReplyMarkup{
			InlineKeyboard: [][]tele.InlineButton{{
				{Text: msg.NextPage.Label, Data: msg.NextPage.CallbackData()},
			}},
		}
	}
	return opts
}
