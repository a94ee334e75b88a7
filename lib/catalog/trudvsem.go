package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxPageLimit = 100

// Client queries the trudvsem.ru open data API.
type Client struct {
	log       *zap.Logger
	transport http.RoundTripper
	limiter   *rate.Limiter

	baseURL   string
	pageLimit int
	timeout   time.Duration
	now       func() time.Time
}

func NewClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Client {
	rps := cfg.Catalog.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	limit := cfg.Catalog.PageLimit
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	log.Sugar().Infow("Catalog client initialized", "base_url", cfg.Catalog.BaseURL)
	return &Client{
		log:       log,
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		baseURL:   strings.TrimRight(cfg.Catalog.BaseURL, "/"),
		pageLimit: limit,
		timeout:   cfg.Catalog.Timeout,
		now:       time.Now,
	}
}

// Search fetches the first page of postings modified during the last day
// and filters them client-side. Any transport, status or decoding failure
// is reported as ErrCatalogUnavailable.
func (c *Client) Search(ctx context.Context, filter models.Filter) (models.Postings, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body string
	err := c.searchRequest(filter, 0).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	postings, err := ParseSearchResponse([]byte(body), filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	c.log.Sugar().Debugw("Catalog search completed", "postings", len(postings), "keyword", filter.Keyword)
	return postings, nil
}

func (c *Client) searchRequest(filter models.Filter, offset int) *requests.Builder {
	endpoint := c.baseURL
	if filter.RegionCode != nil {
		endpoint = fmt.Sprintf("%s/region/%d", endpoint, *filter.RegionCode)
	}

	modifiedFrom := c.now().UTC().Add(-24 * time.Hour).Format("2006-01-02T15:04:05Z")

	rb := requests.URL(endpoint).
		Transport(c.transport).
		Accept("application/json").
		Param("limit", strconv.Itoa(c.pageLimit)).
		Param("offset", strconv.Itoa(offset)).
		Param("modifiedFrom", modifiedFrom)
	if filter.MinimumExperience != nil {
		rb = rb.Param("experienceFrom", strconv.Itoa(*filter.MinimumExperience))
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		rb = rb.Param("text", keyword)
	}
	return rb
}
