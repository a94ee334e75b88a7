package tracking

import (
	"fmt"
	"html"
	"strings"

	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/senders"
)

const (
	digestPageSize  = 10
	defaultCurrency = "RUB"
)

// BuildDigest renders the first page of undelivered sightings into a single
// message. When more remain, the message carries a link to page 1.
func BuildDigest(sightings models.Sightings) *senders.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 New vacancies found: %d\n\n", len(sightings))

	page := sightings
	if len(page) > digestPageSize {
		page = page[:digestPageSize]
	}
	for i := range page {
		writePosting(&b, i+1, &page[i].Posting)
	}

	msg := &senders.Message{
		Subject: fmt.Sprintf("vacancywatch: %d new vacancies", len(sightings)),
		Body:    strings.TrimRight(b.String(), "\n"),
	}
	if len(sightings) > digestPageSize {
		msg.NextPage = &senders.PageLink{
			Label:  fmt.Sprintf("Next %d →", digestPageSize),
			Cursor: 1,
		}
	}
	return msg
}

func writePosting(b *strings.Builder, n int, p *models.Posting) {
	fmt.Fprintf(b, "<b>%d. %s</b>\n", n, html.EscapeString(p.Title))
	if p.Employer != "" {
		fmt.Fprintf(b, "Employer: %s\n", html.EscapeString(p.Employer))
	}
	fmt.Fprintf(b, "Salary: %s\n", html.EscapeString(FormatSalary(p)))
	if p.ExperienceYears != nil {
		fmt.Fprintf(b, "Experience: %s\n", FormatExperience(*p.ExperienceYears))
	}
	if p.URL != "" {
		fmt.Fprintf(b, "<a href=\"%s\">Details</a>\n", html.EscapeString(p.URL))
	}
	b.WriteString("\n")
}

func FormatSalary(p *models.Posting) string {
	var amount string
	switch {
	case p.SalaryFrom != nil && p.SalaryTo != nil:
		amount = fmt.Sprintf("%d–%d", *p.SalaryFrom, *p.SalaryTo)
	case p.SalaryFrom != nil:
		amount = fmt.Sprintf("from %d", *p.SalaryFrom)
	case p.SalaryTo != nil:
		amount = fmt.Sprintf("to %d", *p.SalaryTo)
	default:
		return "not specified"
	}

	currency := p.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return amount + " " + currency
}

// pluralForms follows the one/few/many split of Slavic plurals, where
// 2–4 and 5+ take different noun forms.
type pluralForms struct {
	one, few, many string
}

func (f pluralForms) pick(n int) string {
	switch {
	case n == 1:
		return f.one
	case n <= 4:
		return f.few
	default:
		return f.many
	}
}

var yearForms = pluralForms{one: "year", few: "years", many: "years"}

func FormatExperience(years int) string {
	if years <= 0 {
		return "no experience"
	}
	return fmt.Sprintf("%d %s", years, yearForms.pick(years))
}
