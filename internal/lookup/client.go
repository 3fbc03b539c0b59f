// Package lookup resolves identifiers against the catalog provider, serving
// repeats from a TTL cache and gating provider calls through admission control.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bookscan/internal/admission"
	"bookscan/internal/entity"
	"bookscan/internal/logging"
	"bookscan/internal/lookupcache"
)

// AdmissionKey is the admission window shared by every provider call a Client makes.
const AdmissionKey = "catalog"

// Client is safe for concurrent use.
type Client struct {
	service Service
	cache   *lookupcache.Cache
	limiter *admission.Limiter
	logger  *slog.Logger
}

func NewClient(service Service, cache *lookupcache.Cache, limiter *admission.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		service: service,
		cache:   cache,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "lookup"),
	}
}

// Resolve returns the catalog item for identifier. Cache hits never consume
// admission budget. Not-found answers are cached; transport failures are not.
func (c *Client) Resolve(ctx context.Context, identifier string) (entity.CatalogItem, error) {
	identifier = strings.TrimSpace(identifier)

	item, status := c.cache.Get(identifier)
	switch status {
	case lookupcache.Hit:
		c.logger.Debug("lookup cache hit", slog.String("identifier", identifier))
		return item, nil
	case lookupcache.NotFound:
		c.logger.Debug("lookup negative cache hit", slog.String("identifier", identifier))
		return entity.CatalogItem{}, ErrNotFound
	}

	if err := c.admit(); err != nil {
		return entity.CatalogItem{}, err
	}

	item, err := c.service.LookupByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.cache.PutNotFound(identifier)
			return entity.CatalogItem{}, ErrNotFound
		}
		c.logger.Warn("catalog lookup failed",
			slog.String("identifier", identifier),
			slog.Any("error", err))
		return entity.CatalogItem{}, err
	}

	if item.Identifier == "" {
		item.Identifier = identifier
	}
	c.cache.Put(identifier, item)
	return item, nil
}

// Search runs a free-text provider search. Results are not cached but the
// call is admission-gated like any other provider call.
func (c *Client) Search(ctx context.Context, query string, limit, page int) ([]entity.CatalogItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	if err := c.admit(); err != nil {
		return nil, err
	}
	return c.service.SearchByText(ctx, query, limit, page)
}

func (c *Client) admit() error {
	if c.limiter == nil {
		return nil
	}
	decision := c.limiter.Admit(AdmissionKey)
	if decision.Allowed {
		return nil
	}
	c.logger.Warn("catalog call denied by admission control",
		slog.Duration("retry_after", decision.RetryAfter))
	return &RateLimitedError{RetryAfter: decision.RetryAfter}
}
