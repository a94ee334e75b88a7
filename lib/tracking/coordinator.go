package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/catalog"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/registry"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func PollKey(userID int64) string {
	return "poll:" + strconv.FormatInt(userID, 10)
}

func NotifyKey(userID int64) string {
	return "notify:" + strconv.FormatInt(userID, 10)
}

// Coordinator owns the per-user schedules: one poll timer and one notify
// timer for every active user with a non-empty filter.
type Coordinator struct {
	log      *zap.Logger
	store    Store
	catalog  catalog.Catalog
	senders  senders.Registry
	registry *registry.Registry
	now      func() time.Time

	pollInterval   time.Duration
	notifyInterval time.Duration
}

func NewCoordinator(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	st *store.Store,
	cat catalog.Catalog,
	reg *registry.Registry,
	snd senders.Registry,
) *Coordinator {
	c := New(cfg, log, st, cat, reg, snd)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.RestartAll(ctx)
		},
	})
	return c
}

func New(cfg *config.Config, log *zap.Logger, st Store, cat catalog.Catalog, reg *registry.Registry, snd senders.Registry) *Coordinator {
	pollInterval := cfg.Scheduler.PollInterval
	if pollInterval <= 0 {
		pollInterval = 24 * time.Hour
	}
	notifyInterval := cfg.Scheduler.NotifyInterval
	if notifyInterval <= 0 {
		notifyInterval = 24 * time.Hour
	}

	return &Coordinator{
		log:            log,
		store:          st,
		catalog:        cat,
		senders:        snd,
		registry:       reg,
		now:            time.Now,
		pollInterval:   pollInterval,
		notifyInterval: notifyInterval,
	}
}

func (c *Coordinator) PollJob(userID int64) *PollJob {
	return &PollJob{userID, c.store, c.catalog, c.log, c.now}
}

func (c *Coordinator) NotifyJob(userID int64) *NotifyJob {
	return &NotifyJob{userID, c.store, c.senders, c.log, c.now}
}

// Start installs the user's schedules. It is a no-op for unknown, inactive
// or filterless users, and re-running it replaces rather than duplicates.
func (c *Coordinator) Start(ctx context.Context, userID int64) error {
	user, err := c.store.FindUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		c.log.Sugar().Infow("Not starting tracking for unknown user", "user_id", userID)
		return nil
	} else if err != nil {
		return err
	}

	if !user.Active {
		c.log.Sugar().Infow("User is not active, not starting tracking", "user_id", userID)
		return nil
	}
	if user.Filter.IsEmpty() {
		c.log.Sugar().Infow("User has no search filter, not starting tracking", "user_id", userID)
		return nil
	}

	if err := c.schedule(user); err != nil {
		return err
	}
	c.log.Sugar().Infow("Started tracking", "user_id", userID)
	return nil
}

// Stop removes both timers and evicts every sighting of the user.
func (c *Coordinator) Stop(ctx context.Context, userID int64) error {
	c.registry.CancelAll(PollKey(userID), NotifyKey(userID))

	if _, err := c.store.DeleteSightings(ctx, userID); err != nil {
		return fmt.Errorf("stop tracking user %d: %w", userID, err)
	}
	c.log.Sugar().Infow("Stopped tracking", "user_id", userID)
	return nil
}

// UpdateNotificationTime persists the new time and offset, then reinstalls
// the notify timer if the user is trackable. An unparseable time is stored
// as given and logged, and leaves the user without a notify timer.
func (c *Coordinator) UpdateNotificationTime(ctx context.Context, userID int64, timeOfDay string, offsetSeconds int) error {
	user, err := c.store.FindUser(ctx, userID)
	if err != nil {
		return err
	}

	user.NotificationTime = timeOfDay
	user.OffsetSeconds = offsetSeconds
	if err := c.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save notification time: %w", err)
	}
	c.log.Sugar().Infow("Updated notification time",
		"user_id", userID, "time", timeOfDay, "offset", models.FormatOffset(offsetSeconds))

	if user.Trackable() {
		return c.scheduleNotify(user)
	}
	return nil
}

// RestartAll reinstalls schedules for every trackable user. Schedules are
// not persisted, so this runs once on boot.
func (c *Coordinator) RestartAll(ctx context.Context) error {
	c.log.Sugar().Info("Restarting all scheduled tasks")

	users, err := c.store.ListTrackable(ctx)
	if err != nil {
		return fmt.Errorf("restart all: %w", err)
	}

	restarted := 0
	for i := range users {
		user := &users[i]
		if !user.Trackable() {
			continue
		}
		if err := c.schedule(user); err != nil {
			return err
		}
		restarted++
	}

	c.log.Sugar().Infof("Restarted tasks for %d active users", restarted)
	return nil
}

// Status reports which of the user's timers are installed.
type Status struct {
	PollScheduled   bool
	NotifyScheduled bool
	NextPoll        *time.Time
	NextNotify      *time.Time
}

func (c *Coordinator) Status(userID int64) Status {
	s := Status{
		PollScheduled:   c.registry.IsScheduled(PollKey(userID)),
		NotifyScheduled: c.registry.IsScheduled(NotifyKey(userID)),
	}
	if next, ok := c.registry.NextRun(PollKey(userID)); ok {
		s.NextPoll = &next
	}
	if next, ok := c.registry.NextRun(NotifyKey(userID)); ok {
		s.NextNotify = &next
	}
	return s
}

func (c *Coordinator) schedule(user *models.User) error {
	err := c.registry.RegisterRecurring(PollKey(user.ID), 0, c.pollInterval, c.PollJob(user.ID))
	if err != nil {
		return fmt.Errorf("schedule poll for user %d: %w", user.ID, err)
	}
	if user.NotificationTime != "" {
		return c.scheduleNotify(user)
	}
	return nil
}

// scheduleNotify only returns scheduling-substrate errors. Bad user input
// is logged and leaves no notify timer behind.
func (c *Coordinator) scheduleNotify(user *models.User) error {
	key := NotifyKey(user.ID)
	if user.NotificationTime == "" {
		c.registry.Cancel(key)
		return nil
	}

	delay, err := InitialDelay(c.now(), user.NotificationTime, user.OffsetSeconds)
	if err != nil {
		c.registry.Cancel(key)
		c.log.Sugar().Errorw("Failed to schedule notification", "user_id", user.ID, "err", err)
		return nil
	}

	if err := c.registry.RegisterRecurring(key, delay, c.notifyInterval, c.NotifyJob(user.ID)); err != nil {
		return fmt.Errorf("schedule notification for user %d: %w", user.ID, err)
	}
	c.log.Sugar().Infow("Scheduled notification",
		"user_id", user.ID, "delay", delay.Round(time.Second).String())
	return nil
}
