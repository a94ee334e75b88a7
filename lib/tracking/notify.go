package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/senders"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NotifyJob sends one digest of a user's undelivered sightings. Sightings
// are marked delivered only after the sender accepted the message, so a
// failed send is retried in full on the next firing.
type NotifyJob struct {
	UserID int64

	store   Store
	senders senders.Registry
	log     *zap.Logger
	now     func() time.Time
}

func (j *NotifyJob) Run(ctx context.Context) error {
	user, err := j.store.FindUser(ctx, j.UserID)
	if errors.Is(err, store.ErrNotFound) {
		j.log.Sugar().Infow("Skipping notification for missing user", "user_id", j.UserID)
		return nil
	} else if err != nil {
		return fmt.Errorf("notify user %d: %w", j.UserID, err)
	}
	if !user.Active {
		j.log.Sugar().Debugw("Skipping notification for inactive user", "user_id", j.UserID)
		return nil
	}

	batch, err := j.store.FindUndelivered(ctx, j.UserID)
	if err != nil {
		return fmt.Errorf("notify user %d: load undelivered: %w", j.UserID, err)
	}
	if len(batch) == 0 {
		j.log.Sugar().Debugw("Nothing to notify", "user_id", j.UserID)
		return nil
	}

	sender, err := j.senders.For(user.Platform())
	if err != nil {
		return fmt.Errorf("notify user %d: %w", j.UserID, err)
	}

	msg := BuildDigest(batch)
	messageID, err := sender.Send(ctx, user.Recipient(), msg)
	if err != nil {
		return fmt.Errorf("notify user %d: send digest of %d: %w", j.UserID, len(batch), err)
	}

	deliveredAt := j.now().UTC()
	var errs error
	for _, sighting := range batch {
		at := deliveredAt
		if at.Before(sighting.DiscoveredAt) {
			at = sighting.DiscoveredAt
		}
		if err := j.store.MarkDelivered(ctx, sighting.ID, at); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sighting %d: %w", sighting.ID, err))
		}
	}

	j.log.Sugar().Infow(fmt.Sprintf("Sent digest of %d vacancies", len(batch)),
		"user_id", j.UserID, "platform", user.Platform(), "message_id", messageID)
	if errs != nil {
		return fmt.Errorf("notify user %d: mark delivered: %w", j.UserID, errs)
	}
	return nil
}
