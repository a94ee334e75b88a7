package tracking

import (
	"context"
	"time"

	"github.com/fiffu/vacancywatch/lib/models"
)

// Store is the persistence the tracking jobs depend on.
type Store interface {
	FindUser(ctx context.Context, userID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListTrackable(ctx context.Context) (models.Users, error)

	FindSightings(ctx context.Context, userID int64) (models.Sightings, error)
	FindUndelivered(ctx context.Context, userID int64) (models.Sightings, error)
	SaveSighting(ctx context.Context, sighting *models.Sighting) (bool, error)
	MarkDelivered(ctx context.Context, sightingID uint, at time.Time) error
	DeleteSightings(ctx context.Context, userID int64) (int64, error)
}
