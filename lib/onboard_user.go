package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/store"
	"go.uber.org/zap"
)

type OnboardRequest struct {
	ID         int64
	ChatID     int64
	Username   string
	FirstName  string
	LastName   string
	Platform   string
	Identifier string
}

type onboardUser struct {
	log   *zap.Logger
	store *store.Store
}

// OnboardUser creates the user or refreshes their profile. Filter, schedule
// and activation of an existing user are left as they were.
func (svc *onboardUser) OnboardUser(ctx context.Context, req OnboardRequest) (*models.User, error) {
	if req.ID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	switch req.Platform {
	case "", models.PlatformTelegram, models.PlatformEmail:
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, req.Platform)
	}
	if req.Platform == models.PlatformEmail && req.Identifier == "" {
		return nil, fmt.Errorf("%w: email platform needs an address", ErrInvalidInput)
	}

	user, err := svc.store.FindUser(ctx, req.ID)
	created := false
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{ID: req.ID}
		created = true
	} else if err != nil {
		return nil, err
	}

	user.ChatID = req.ChatID
	if user.ChatID == 0 {
		user.ChatID = req.ID
	}
	user.Username = req.Username
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Notifier = models.Notifier{Platform: req.Platform, Identifier: req.Identifier}

	if err := svc.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	if created {
		svc.log.Sugar().Infof("Created user %v (%s)", user.ID, user.Username)
	} else {
		svc.log.Sugar().Infof("Updated profile of user %v (%s)", user.ID, user.Username)
	}
	return user, nil
}
