package catalog

import (
	"testing"

	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/stretchr/testify/assert"
)

func intp(n int) *int { return &n }

func TestMatches(t *testing.T) {
	posting := models.Posting{
		Title:           "Senior Go engineer",
		Employer:        "Gopher Inc",
		Description:     "Kubernetes and Postgres",
		SalaryFrom:      intp(150000),
		SalaryTo:        intp(200000),
		ExperienceYears: intp(3),
	}
	unpaid := models.Posting{Title: "Intern"}

	tests := []struct {
		name    string
		posting models.Posting
		filter  models.Filter
		want    bool
	}{
		{"empty filter", posting, models.Filter{}, true},
		{"keyword in title", posting, models.Filter{Keyword: "go"}, true},
		{"keyword in employer", posting, models.Filter{Keyword: "gopher"}, true},
		{"keyword in description", posting, models.Filter{Keyword: "postgres"}, true},
		{"keyword missing", posting, models.Filter{Keyword: "java"}, false},
		{"salary from meets minimum", posting, models.Filter{MinimumSalary: intp(150000)}, true},
		{"salary to meets minimum", posting, models.Filter{MinimumSalary: intp(180000)}, true},
		{"salary below minimum", posting, models.Filter{MinimumSalary: intp(250000)}, false},
		{"no salary is kept", unpaid, models.Filter{MinimumSalary: intp(250000)}, true},
		{"experience at least minimum", posting, models.Filter{MinimumExperience: intp(3)}, true},
		{"experience below minimum", posting, models.Filter{MinimumExperience: intp(5)}, false},
		{"unknown experience is kept", unpaid, models.Filter{MinimumExperience: intp(5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(&tt.posting, tt.filter))
		})
	}
}
