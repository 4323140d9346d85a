package port

import "context"

// StockGateResult is the outcome of a cache-side stock reservation.
type StockGateResult int

const (
	// GateReserved means cached stock was decremented
	GateReserved StockGateResult = iota
	// GateUntracked means the product has no cached counter; the caller
	// falls through to the authoritative ledger
	GateUntracked
	// GateInsufficient means cached stock was too low; nothing was mutated
	GateInsufficient
)

type CacheRepository interface {
	// ReserveStock atomically decrements the cached stock counter. The
	// available quantity is meaningful only for GateInsufficient.
	ReserveStock(ctx context.Context, productID int64, quantity int) (StockGateResult, int, error)

	// RestoreStock increments the cached counter if the product is tracked
	// (for rollback and cancellation compensation)
	RestoreStock(ctx context.Context, productID int64, quantity int) error

	// SetStock overwrites the cached counter for a product
	SetStock(ctx context.Context, productID int64, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
