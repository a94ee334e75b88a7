package tracking

import (
	"time"

	"github.com/fiffu/vacancywatch/lib/models"
)

// NextFire returns the next instant strictly after now at which the wall
// clock in the fixed offset reads timeOfDay. Named zones and DST are
// deliberately not supported.
func NextFire(now time.Time, timeOfDay string, offsetSeconds int) (time.Time, error) {
	hour, minute, err := models.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.FixedZone(models.FormatOffset(offsetSeconds), offsetSeconds)
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// InitialDelay is the duration from now until NextFire.
func InitialDelay(now time.Time, timeOfDay string, offsetSeconds int) (time.Duration, error) {
	next, err := NextFire(now, timeOfDay, offsetSeconds)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}
