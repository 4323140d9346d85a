package port

import (
	"context"

	"github.com/vhoang/storefront/internal/core/domain"
)

type OrderRepository interface {
	// GetOrder returns the order with its items, or an error wrapping
	// domain.ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// Tx is the transactional view handed to a WithinTx callback. Mutations made
// through it become visible only when the callback returns nil.
type Tx interface {
	InventoryLedger

	// CreateOrder persists the order together with all of its items
	CreateOrder(ctx context.Context, order *domain.Order) error

	// ClearCart deletes every cart line for the user
	ClearCart(ctx context.Context, userID string) error

	// GetOrderForUpdate loads an order with its items, locked for the
	// duration of the transaction
	GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error)

	// UpdateOrderStatus overwrites the order's status
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// CheckoutStore scopes a unit of work: every mutation made through the Tx is
// committed when fn returns nil and rolled back on error or panic.
type CheckoutStore interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
