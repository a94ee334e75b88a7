package app

import (
	"database/sql"
	"time"

	"github.com/fiffu/vacancywatch/lib"
	"github.com/fiffu/vacancywatch/lib/models"
)

type UserView struct {
	ID               int64        `json:"id"`
	ChatID           int64        `json:"chat_id"`
	Username         string       `json:"username"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Active           bool         `json:"active"`
	Notifier         NotifierView `json:"notifier"`
	Filter           FilterView   `json:"filter"`
	NotificationTime *string      `json:"notification_time"`
	Offset           string       `json:"offset"`
}

type NotifierView struct {
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
}

type FilterView struct {
	RegionCode        *int64 `json:"region_code"`
	MinimumExperience *int   `json:"minimum_experience"`
	MinimumSalary     *int   `json:"minimum_salary"`
	Keyword           string `json:"keyword"`
}

type StatusView struct {
	User            UserView `json:"user"`
	PollScheduled   bool     `json:"poll_scheduled"`
	NotifyScheduled bool     `json:"notify_scheduled"`
	NextPoll        *string  `json:"next_poll"`
	NextNotify      *string  `json:"next_notify"`
	Undelivered     int64    `json:"undelivered"`
}

type SightingView struct {
	ID           uint    `json:"id"`
	CatalogID    string  `json:"catalog_id"`
	Title        string  `json:"title"`
	Employer     string  `json:"employer"`
	URL          string  `json:"url"`
	DiscoveredAt string  `json:"discovered_at"`
	DeliveredAt  *string `json:"delivered_at"`
}

func (view UserView) From(entity *models.User) UserView {
	var notificationTime *string
	if entity.NotificationTime != "" {
		notificationTime = &entity.NotificationTime
	}
	return UserView{
		ID:        entity.ID,
		ChatID:    entity.ChatID,
		Username:  entity.Username,
		FirstName: entity.FirstName,
		LastName:  entity.LastName,
		Active:    entity.Active,
		Notifier: NotifierView{
			Platform:   entity.Platform(),
			Identifier: entity.Recipient(),
		},
		Filter: FilterView{
			RegionCode:        entity.Filter.RegionCode,
			MinimumExperience: entity.Filter.MinimumExperience,
			MinimumSalary:     entity.Filter.MinimumSalary,
			Keyword:           entity.Filter.Keyword,
		},
		NotificationTime: notificationTime,
		Offset:           models.FormatOffset(entity.OffsetSeconds),
	}
}

func (view StatusView) From(entity *lib.UserStatus) StatusView {
	return StatusView{
		User:            UserView{}.From(entity.User),
		PollScheduled:   entity.Schedule.PollScheduled,
		NotifyScheduled: entity.Schedule.NotifyScheduled,
		NextPoll:        isoformatPtr(entity.Schedule.NextPoll),
		NextNotify:      isoformatPtr(entity.Schedule.NextNotify),
		Undelivered:     entity.Undelivered,
	}
}

func (view SightingView) From(entity models.Sighting) SightingView {
	return SightingView{
		ID:           entity.ID,
		CatalogID:    entity.CatalogID,
		Title:        entity.Posting.Title,
		Employer:     entity.Posting.Employer,
		URL:          entity.Posting.URL,
		DiscoveredAt: entity.DiscoveredAt.UTC().Format(time.RFC3339),
		DeliveredAt:  isoformat(entity.DeliveredAt),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t sql.NullTime) *string {
	if t.Valid {
		return isoformatPtr(&t.Time)
	}
	return nil
}

func isoformatPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
