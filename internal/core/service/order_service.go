package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/port"
)

// OrderService drives the post-creation order lifecycle. Cancellation and its
// compensating inventory restore commit atomically: either the status flips
// and every item's quantity returns to stock, or neither happens.
type OrderService struct {
	orders port.OrderRepository
	store  port.CheckoutStore
	cache  port.CacheRepository // optional; mirrors restores into the stock gate
}

func NewOrderService(orders port.OrderRepository, store port.CheckoutStore, cache port.CacheRepository) *OrderService {
	return &OrderService{
		orders: orders,
		store:  store,
		cache:  cache,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

// Transition moves an order to next, enforcing forward-only monotonicity.
func (s *OrderService) Transition(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, domain.ErrInvalidTransition)
	}

	var updated *domain.Order
	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, next) {
			return fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrInvalidTransition)
		}

		if next == domain.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.Restore(ctx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("restore product %d: %w", item.ProductID, err)
				}
			}
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, next); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order.Status = next
		order.UpdatedAt = time.Now()
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next == domain.OrderStatusCancelled && s.cache != nil {
		for _, item := range updated.Items {
			if err := s.cache.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				log.Printf("CRITICAL: stock gate restore failed for product %d: %v", item.ProductID, err)
			}
		}
	}

	return updated, nil
}
