package models

import "strings"

// Filter holds a user's search criteria. Unset numeric criteria are nil.
type Filter struct {
	RegionCode        *int64
	MinimumExperience *int
	MinimumSalary     *int
	Keyword           string
}

// IsEmpty reports whether the filter selects nothing to track.
func (f Filter) IsEmpty() bool {
	return f.RegionCode == nil &&
		f.MinimumExperience == nil &&
		f.MinimumSalary == nil &&
		strings.TrimSpace(f.Keyword) == ""
}
