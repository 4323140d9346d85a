package port

import (
	"context"

	"github.com/vhoang/storefront/internal/core/domain"
)

type CatalogReader interface {
	// GetProduct returns the current price, stock and active flag for a
	// product, or an error wrapping domain.ErrNotFound.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}
