package models

import (
	"database/sql"
	"time"
)

// Sighting records that a user has discovered a posting, and whether the
// posting has been delivered to them yet.
type Sighting struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       int64  `gorm:"uniqueIndex:idx_sighting_user_catalog;index:idx_sighting_user_undelivered"`
	CatalogID    string `gorm:"uniqueIndex:idx_sighting_user_catalog"`
	DiscoveredAt time.Time
	DeliveredAt  sql.NullTime
	Undelivered  bool `gorm:"index:idx_sighting_user_undelivered"`

	Posting Posting `gorm:"embedded;embeddedPrefix:posting_"`
}

type Sightings []Sighting

func NewSighting(userID int64, posting Posting, discoveredAt time.Time) *Sighting {
	return &Sighting{
		UserID:       userID,
		CatalogID:    posting.CatalogID,
		DiscoveredAt: discoveredAt,
		Undelivered:  true,
		Posting:      posting,
	}
}
