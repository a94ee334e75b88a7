package catalog

import (
	"strings"

	"github.com/fiffu/vacancywatch/lib/models"
)

// Matches applies the criteria the catalog cannot filter on server-side.
func Matches(p *models.Posting, f models.Filter) bool {
	return matchesSalary(p, f) && matchesKeyword(p, f) && matchesExperience(p, f)
}

// Postings with no salary at all are kept, since the catalog often omits it.
func matchesSalary(p *models.Posting, f models.Filter) bool {
	if f.MinimumSalary == nil {
		return true
	}
	min := *f.MinimumSalary
	if p.SalaryFrom != nil && *p.SalaryFrom >= min {
		return true
	}
	if p.SalaryTo != nil && *p.SalaryTo >= min {
		return true
	}
	return p.SalaryFrom == nil && p.SalaryTo == nil
}

func matchesKeyword(p *models.Posting, f models.Filter) bool {
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	if keyword == "" {
		return true
	}
	for _, field := range []string{p.Title, p.Employer, p.Description} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

func matchesExperience(p *models.Posting, f models.Filter) bool {
	if f.MinimumExperience == nil || p.ExperienceYears == nil {
		return true
	}
	return *p.ExperienceYears >= *f.MinimumExperience
}
