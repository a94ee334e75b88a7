package senders

import "fmt"

// Message is one outbound notification. Body is HTML limited to the tags
// Telegram accepts (b, i, a) with newline separated lines.
type Message struct {
	Subject  string
	Body     string
	NextPage *PageLink
}

// PageLink asks the recipient's client to offer a "next page" affordance.
type PageLink struct {
	Label  string
	Cursor int
}

func (p *PageLink) CallbackData() string {
	return fmt.Sprintf("next_vacancies_%d", p.Cursor)
}
