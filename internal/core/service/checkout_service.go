package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/port"
)

// CheckoutService turns a user's mutable cart into an immutable order.
// Stock reservations, order creation and cart clearing commit as one unit:
// either every mutation is visible or none is.
type CheckoutService struct {
	carts   port.CartRepository
	catalog port.CatalogReader
	store   port.CheckoutStore
	cache   port.CacheRepository // optional fast-fail stock gate; may be nil
}

func NewCheckoutService(carts port.CartRepository, catalog port.CatalogReader, store port.CheckoutStore, cache port.CacheRepository) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		catalog: catalog,
		store:   store,
		cache:   cache,
	}
}

// CheckoutOptions carries the optional parts of a checkout request.
// IdempotencyKey, when set, deduplicates double-submitted requests: a replay
// with the same key fails with domain.ErrDuplicateRequest.
type CheckoutOptions struct {
	PhoneNumber    string
	Notes          string
	IdempotencyKey string
}

func (s *CheckoutService) Checkout(ctx context.Context, userID, shippingAddress string, opts CheckoutOptions) (*domain.Order, error) {
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ErrMissingAddress
	}

	lines, err := s.carts.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Single consistent price/active read; unit prices are snapshotted from
	// here, not re-read per line.
	products := make(map[int64]*domain.Product, len(lines))
	for _, line := range lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ProductUnavailableError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("resolve product %d: %w", line.ProductID, err)
		}
		if !product.Active {
			return nil, &domain.ProductUnavailableError{ProductID: line.ProductID}
		}
		products[line.ProductID] = product
	}

	if s.cache != nil && opts.IdempotencyKey != "" {
		key := fmt.Sprintf("checkout:%s:%s", userID, opts.IdempotencyKey)
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	// Reserve in ascending product id order so concurrent checkouts sharing
	// products never acquire row locks in conflicting order.
	sorted := make([]domain.CartLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	gated, err := s.reserveGate(ctx, sorted)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.store.WithinTx(ctx, func(tx port.Tx) error {
		var reserved []domain.CartLine
		for _, line := range sorted {
			if err := tx.TryReserve(ctx, line.ProductID, line.Quantity); err != nil {
				for i := len(reserved) - 1; i >= 0; i-- {
					if rbErr := tx.Restore(ctx, reserved[i].ProductID, reserved[i].Quantity); rbErr != nil {
						return fmt.Errorf("restore product %d: %w", reserved[i].ProductID, rbErr)
					}
				}
				return err
			}
			reserved = append(reserved, line)
		}

		total := decimal.Zero
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			item := domain.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: products[line.ProductID].Price,
			}
			total = total.Add(item.Subtotal())
			items = append(items, item)
		}

		now := time.Now()
		order = &domain.Order{
			ID:              uuid.New().String(),
			Number:          newOrderNumber(),
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			Total:           total,
			ShippingAddress: shippingAddress,
			PhoneNumber:     opts.PhoneNumber,
			Notes:           opts.Notes,
			Items:           items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		s.releaseGate(ctx, gated)
		return nil, err
	}

	return order, nil
}

// reserveGate fast-fails against cached stock counters before the
// authoritative transaction. It returns the lines whose counters were
// actually decremented so a later failure can release exactly those.
func (s *CheckoutService) reserveGate(ctx context.Context, sorted []domain.CartLine) ([]domain.CartLine, error) {
	if s.cache == nil {
		return nil, nil
	}

	var gated []domain.CartLine
	for _, line := range sorted {
		result, available, err := s.cache.ReserveStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.releaseGate(ctx, gated)
			return nil, fmt.Errorf("stock gate for product %d: %w", line.ProductID, err)
		}
		switch result {
		case port.GateReserved:
			gated = append(gated, line)
		case port.GateInsufficient:
			s.releaseGate(ctx, gated)
			return nil, &domain.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}
	return gated, nil
}

func (s *CheckoutService) releaseGate(ctx context.Context, gated []domain.CartLine) {
	for i := len(gated) - 1; i >= 0; i-- {
		if err := s.cache.RestoreStock(ctx, gated[i].ProductID, gated[i].Quantity); err != nil {
			log.Printf("CRITICAL: stock gate restore failed for product %d: %v", gated[i].ProductID, err)
		}
	}
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}
