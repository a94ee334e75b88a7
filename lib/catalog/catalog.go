package catalog

import (
	"context"
	"errors"

	"github.com/fiffu/vacancywatch/lib/models"
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Catalog searches the external vacancy catalog. Implementations return
// only postings that match the filter.
type Catalog interface {
	Search(ctx context.Context, filter models.Filter) (models.Postings, error)
}
