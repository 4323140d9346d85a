package port

import (
	"context"

	"github.com/vhoang/storefront/internal/core/domain"
)

type CartRepository interface {
	// GetLine returns the line for (user, product), or nil if absent
	GetLine(ctx context.Context, userID string, productID int64) (*domain.CartLine, error)

	// SaveLine inserts the line or overwrites the quantity of an existing one
	SaveLine(ctx context.Context, line domain.CartLine) error

	// RemoveLine deletes the line if present; absence is not an error
	RemoveLine(ctx context.Context, userID string, productID int64) error

	// ListLines returns the user's lines in insertion order
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)

	// Clear deletes every line for the user
	Clear(ctx context.Context, userID string) error
}
