package senders

import (
	"html/template"
	"strings"

	"github.com/fiffu/vacancywatch/senders/email"
)

func newDigestEmail(msg *Message) *email.DigestEmailFormat {
	ef := &email.DigestEmailFormat{Title: msg.Subject}
	if ef.Title == "" {
		ef.Title = "vacancywatch: new vacancies"
	}

	// Message bodies are already escaped HTML built for Telegram.
	for _, line := range strings.Split(msg.Body, "\n") {
		ef.Lines = append(ef.Lines, template.HTML(line))
	}
	if msg.NextPage != nil {
		ef.NextPage = msg.NextPage.Label
	}
	return ef
}
