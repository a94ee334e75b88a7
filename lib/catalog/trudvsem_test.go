package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Catalog.BaseURL = srv.URL + "/api/v1/vacancies"
	cfg.Catalog.PageLimit = 500
	cfg.Catalog.RatePerSec = 100
	cfg.Catalog.Timeout = 5 * time.Second

	c := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop(), http.DefaultTransport)
	c.now = func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_SearchBuildsQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	})

	region := int64(7700000000)
	postings, err := c.Search(context.Background(), models.Filter{
		RegionCode:        &region,
		MinimumExperience: intp(1),
		Keyword:           "java developer",
	})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "abc-1", postings[0].CatalogID)

	assert.Equal(t, "/api/v1/vacancies/region/7700000000", gotPath)
	assert.Equal(t, []string{"100"}, gotQuery["limit"])
	assert.Equal(t, []string{"0"}, gotQuery["offset"])
	assert.Equal(t, []string{"1"}, gotQuery["experienceFrom"])
	assert.Equal(t, []string{"java developer"}, gotQuery["text"])
	assert.Equal(t, []string{"2024-05-01T12:00:00Z"}, gotQuery["modifiedFrom"])
}

func TestClient_SearchWithoutRegion(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"status": "200", "results": {"vacancies": []}}`))
	})

	postings, err := c.Search(context.Background(), models.Filter{MinimumSalary: intp(1)})
	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.Equal(t, "/api/v1/vacancies", gotPath)
	assert.NotContains(t, gotQuery, "text")
	assert.NotContains(t, gotQuery, "experienceFrom")
}

func TestClient_SearchUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"api status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": "400"}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Search(context.Background(), models.Filter{Keyword: "java"})
			require.ErrorIs(t, err, ErrCatalogUnavailable)
		})
	}
}
