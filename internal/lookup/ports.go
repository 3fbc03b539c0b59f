package lookup

import (
	"context"

	"bookscan/internal/entity"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks bookscan/internal/lookup Service

// Service is the external catalog metadata provider.
type Service interface {
	// LookupByIdentifier returns ErrNotFound when the provider has no match.
	LookupByIdentifier(ctx context.Context, identifier string) (entity.CatalogItem, error)
	SearchByText(ctx context.Context, query string, limit, page int) ([]entity.CatalogItem, error)
}
