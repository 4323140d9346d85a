package port

import "context"

type InventoryLedger interface {
	// TryReserve atomically checks available stock and decrements it. When
	// stock is insufficient it performs no mutation and returns a
	// *domain.InsufficientStockError carrying the available quantity.
	// Reservations against the same product never interleave their
	// check-then-decrement step.
	TryReserve(ctx context.Context, productID int64, quantity int) error

	// Restore atomically increments stock by quantity, compensating a prior
	// reservation. The ledger does not deduplicate restore calls.
	Restore(ctx context.Context, productID int64, quantity int) error
}
