package models

import (
	"strconv"
	"time"
)

type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	Active    bool `gorm:"index"`

	Filter   Filter   `gorm:"embedded;embeddedPrefix:filter_"`
	Notifier Notifier `gorm:"embedded;embeddedPrefix:notifier_"`

	NotificationTime string // HH:MM in the user's own offset, empty when unset
	OffsetSeconds    int    // Fixed offset east of UTC
}

type Users []User

// Trackable reports whether the user should currently have schedules.
func (u *User) Trackable() bool {
	return u.Active && !u.Filter.IsEmpty()
}

func (u *User) Location() *time.Location {
	return time.FixedZone(FormatOffset(u.OffsetSeconds), u.OffsetSeconds)
}

// Recipient is the address handed to the sender for the user's platform.
// Telegram users without an explicit identifier are addressed by chat id.
func (u *User) Recipient() string {
	if u.Notifier.Identifier != "" {
		return u.Notifier.Identifier
	}
	return strconv.FormatInt(u.ChatID, 10)
}

func (u *User) Platform() string {
	if u.Notifier.Platform == "" {
		return PlatformTelegram
	}
	return u.Notifier.Platform
}
