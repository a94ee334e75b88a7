package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/vacancywatch/lib/models"
)

const (
	statusOK         = "200"
	vacancyURLPrefix = "https://trudvsem.ru/vacancy/"
	defaultCurrency  = "RUB"
)

type searchResponse struct {
	Status  string `json:"status"`
	Results struct {
		Vacancies []struct {
			Vacancy *vacancyJSON `json:"vacancy"`
		} `json:"vacancies"`
	} `json:"results"`
}

type vacancyJSON struct {
	ID      string `json:"id"`
	JobName string `json:"job-name"`
	Duty    string `json:"duty"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
	Salary *struct {
		From     flexInt `json:"from"`
		To       flexInt `json:"to"`
		Currency string  `json:"currency"`
	} `json:"salary"`
	Requirement *struct {
		Experience flexInt `json:"experience"`
	} `json:"requirement"`
	Region *struct {
		Name string  `json:"name"`
		Code flexInt `json:"code"`
	} `json:"region"`
	CreationDate     string `json:"creation-date"`
	ModificationDate string `json:"modification-date"`
}

// flexInt accepts numbers, numeric strings, null and junk. Anything that is
// not an integer decodes as unset.
type flexInt struct {
	Value *int64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.Value = &n
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		n := int64(x)
		f.Value = &n
	}
	return nil
}

func (f flexInt) Int() *int {
	if f.Value == nil {
		return nil
	}
	n := int(*f.Value)
	return &n
}

// ParseSearchResponse decodes a catalog response body and applies the
// client-side filter. Entries that cannot be interpreted are skipped.
func ParseSearchResponse(body []byte, filter models.Filter) (models.Postings, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return resp.postings(filter)
}

func (resp *searchResponse) postings(filter models.Filter) (models.Postings, error) {
	if resp.Status != statusOK {
		return nil, fmt.Errorf("catalog returned status %q", resp.Status)
	}

	postings := make(models.Postings, 0, len(resp.Results.Vacancies))
	for _, item := range resp.Results.Vacancies {
		if item.Vacancy == nil || item.Vacancy.ID == "" {
			continue
		}
		posting := item.Vacancy.toPosting()
		if Matches(&posting, filter) {
			postings = append(postings, posting)
		}
	}
	return postings, nil
}

func (v *vacancyJSON) toPosting() models.Posting {
	p := models.Posting{
		CatalogID:   v.ID,
		Title:       strings.TrimSpace(v.JobName),
		Employer:    strings.TrimSpace(v.Company.Name),
		Description: StripHTML(v.Duty),
		URL:         vacancyURLPrefix + v.ID,
		PublishedAt: parseTimestamp(v.CreationDate),
		RevisedAt:   parseTimestamp(v.ModificationDate),
	}
	if v.Salary != nil {
		p.SalaryFrom = v.Salary.From.Int()
		p.SalaryTo = v.Salary.To.Int()
		p.Currency = v.Salary.Currency
	}
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	if v.Requirement != nil {
		p.ExperienceYears = v.Requirement.Experience.Int()
	}
	if v.Region != nil {
		p.Region = v.Region.Name
		p.RegionCode = v.Region.Code.Value
	}
	return p
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
