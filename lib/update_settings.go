package lib

import (
	"context"
	"fmt"

	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/lib/tracking"
	"go.uber.org/zap"
)

type updateSettings struct {
	log   *zap.Logger
	store *store.Store
	coord *tracking.Coordinator
}

// SetFilter replaces the user's search filter. An empty filter tears down
// tracking; otherwise an active user is rescheduled and polled right away.
func (svc *updateSettings) SetFilter(ctx context.Context, userID int64, filter models.Filter) (*models.User, error) {
	user, err := svc.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Filter = filter
	if err := svc.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	svc.log.Sugar().Infow("Updated search filter", "user_id", userID, "empty", filter.IsEmpty())

	if filter.IsEmpty() {
		return user, svc.coord.Stop(ctx, userID)
	}
	if user.Active {
		return user, svc.coord.Start(ctx, userID)
	}
	return user, nil
}

// SetNotificationTime stores the user's digest time. offset is a fixed UTC
// offset such as "+03:00".
func (svc *updateSettings) SetNotificationTime(ctx context.Context, userID int64, timeOfDay, offset string) (*models.User, error) {
	if _, _, err := models.ParseTimeOfDay(timeOfDay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	offsetSeconds, err := models.ParseOffset(offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := svc.coord.UpdateNotificationTime(ctx, userID, timeOfDay, offsetSeconds); err != nil {
		return nil, err
	}
	return svc.store.FindUser(ctx, userID)
}

func (svc *updateSettings) StartTracking(ctx context.Context, userID int64) (*models.User, error) {
	user, err := svc.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Filter.IsEmpty() {
		return nil, ErrFilterRequired
	}

	user.Active = true
	if err := svc.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, svc.coord.Start(ctx, userID)
}

func (svc *updateSettings) StopTracking(ctx context.Context, userID int64) (*models.User, error) {
	user, err := svc.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Active = false
	if err := svc.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, svc.coord.Stop(ctx, userID)
}
