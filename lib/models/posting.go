package models

import "time"

// Posting is a snapshot of one catalog vacancy taken at fetch time.
type Posting struct {
	CatalogID       string
	Title           string
	Employer        string
	Description     string
	SalaryFrom      *int
	SalaryTo        *int
	Currency        string
	ExperienceYears *int
	Region          string
	RegionCode      *int64
	URL             string
	PublishedAt     *time.Time
	RevisedAt       *time.Time
}

type Postings []Posting
