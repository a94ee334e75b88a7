package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/registry"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/senders"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	mu       sync.Mutex
	postings models.Postings
	err      error
	calls    int
	onSearch func()
}

func (f *fakeCatalog) Search(ctx context.Context, filter models.Filter) (models.Postings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onSearch != nil {
		f.onSearch()
	}
	if f.err != nil {
		return nil, f.err
	}
	return append(models.Postings(nil), f.postings...), nil
}

func (f *fakeCatalog) set(postings models.Postings, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postings, f.err = postings, err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sentMessage struct {
	recipient string
	msg       *senders.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, recipient string, msg *senders.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipient, msg})
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// flakyStore fails SaveSighting for chosen catalog ids.
type flakyStore struct {
	*store.Store
	failFor map[string]bool
}

func (s *flakyStore) SaveSighting(ctx context.Context, sighting *models.Sighting) (bool, error) {
	if s.failFor[sighting.CatalogID] {
		return false, errors.New("disk full")
	}
	return s.Store.SaveSighting(ctx, sighting)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open(fmt.Sprintf("file:tracking_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return store.NewStore(fxtest.NewLifecycle(t), zap.NewNop(), db)
}

type fixture struct {
	store    *store.Store
	catalog  *fakeCatalog
	sender   *fakeSender
	registry *registry.Registry
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newTestStore(t),
		catalog:  &fakeCatalog{},
		sender:   &fakeSender{},
		registry: registry.New(zap.NewNop(), 2, time.Second),
	}
	t.Cleanup(func() { f.registry.Shutdown(context.Background()) })

	cfg := &config.Config{}
	cfg.Scheduler.PollInterval = 24 * time.Hour
	cfg.Scheduler.NotifyInterval = 24 * time.Hour
	snd := senders.Registry{models.PlatformTelegram: f.sender}

	f.coord = New(cfg, zap.NewNop(), f.store, f.catalog, f.registry, snd)
	return f
}

func (f *fixture) addUser(t *testing.T, user *models.User) *models.User {
	t.Helper()
	require.NoError(t, f.store.SaveUser(context.Background(), user))
	return user
}

func javaUser(id int64) *models.User {
	return &models.User{
		ID:     id,
		ChatID: id * 100,
		Active: true,
		Filter: models.Filter{Keyword: "java"},
	}
}

func postings(ids ...string) models.Postings {
	out := make(models.Postings, len(ids))
	for i, id := range ids {
		out[i] = models.Posting{
			CatalogID: id,
			Title:     "Java developer " + id,
			Employer:  "Acme",
			URL:       "https://trudvsem.ru/vacancy/" + id,
		}
	}
	return out
}

func numberedPostings(n int) models.Postings {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i+1)
	}
	return postings(ids...)
}
