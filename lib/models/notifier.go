package models

const (
	PlatformTelegram = "telegram"
	PlatformEmail    = "email"
)

type Notifier struct {
	Platform   string
	Identifier string
}
