package lib

import (
	"context"
	"errors"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/lib/tracking"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrFilterRequired = errors.New("a search filter is required before tracking can start")
)

type Service struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	coord *tracking.Coordinator

	*onboardUser
	*updateSettings
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, st *store.Store, coord *tracking.Coordinator) *Service {
	return &Service{
		cfg, log, st, coord,
		&onboardUser{log, st},
		&updateSettings{log, st, coord},
	}
}

type UserStatus struct {
	User        *models.User
	Schedule    tracking.Status
	Undelivered int64
}

func (svc *Service) Status(ctx context.Context, userID int64) (*UserStatus, error) {
	user, err := svc.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := svc.store.CountUndelivered(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserStatus{
		User:        user,
		Schedule:    svc.coord.Status(userID),
		Undelivered: count,
	}, nil
}

func (svc *Service) ListSightings(ctx context.Context, userID int64) (models.Sightings, error) {
	if _, err := svc.store.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	return svc.store.FindSightings(ctx, userID)
}
