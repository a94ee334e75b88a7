package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/vacancywatch/lib/catalog"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/store"
	"go.uber.org/zap"
)

type pollMetrics struct {
	returned int
	created  int
	known    int
	errored  int
}

// PollJob searches the catalog for one user and records postings the user
// has not seen before as undelivered sightings.
type PollJob struct {
	UserID int64

	store   Store
	catalog catalog.Catalog
	log     *zap.Logger
	now     func() time.Time
}

func (j *PollJob) Run(ctx context.Context) error {
	user, err := j.store.FindUser(ctx, j.UserID)
	if errors.Is(err, store.ErrNotFound) {
		j.log.Sugar().Infow("Skipping poll for missing user", "user_id", j.UserID)
		return nil
	} else if err != nil {
		return fmt.Errorf("poll user %d: %w", j.UserID, err)
	}
	if !user.Active {
		j.log.Sugar().Debugw("Skipping poll for inactive user", "user_id", j.UserID)
		return nil
	}
	if user.Filter.IsEmpty() {
		j.log.Sugar().Debugw("Skipping poll for user without filter", "user_id", j.UserID)
		return nil
	}

	postings, err := j.catalog.Search(ctx, user.Filter)
	if err != nil {
		return fmt.Errorf("poll user %d: %w", j.UserID, err)
	}

	// Tracking may have stopped while the search was running.
	user, err = j.store.FindUser(ctx, j.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("poll user %d: %w", j.UserID, err)
	}
	if !user.Trackable() {
		j.log.Sugar().Infow("Tracking stopped during poll, discarding results", "user_id", j.UserID)
		return nil
	}

	existing, err := j.store.FindSightings(ctx, j.UserID)
	if err != nil {
		return fmt.Errorf("poll user %d: load sightings: %w", j.UserID, err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		known[s.CatalogID] = struct{}{}
	}

	m := &pollMetrics{returned: len(postings)}
	discoveredAt := j.now().UTC()
	for _, posting := range postings {
		if _, ok := known[posting.CatalogID]; ok {
			m.known++
			continue
		}

		created, err := j.store.SaveSighting(ctx, models.NewSighting(j.UserID, posting, discoveredAt))
		if err != nil {
			m.errored++
			j.log.Sugar().Errorw("Failed to save sighting",
				"user_id", j.UserID, "catalog_id", posting.CatalogID, "err", err)
			continue
		}
		known[posting.CatalogID] = struct{}{}
		if created {
			m.created++
		} else {
			m.known++
		}
	}

	j.log.Sugar().Infow(fmt.Sprintf("Polled %d postings", m.returned),
		"user_id", j.UserID, "new", m.created, "known", m.known, "errored", m.errored)
	return nil
}
