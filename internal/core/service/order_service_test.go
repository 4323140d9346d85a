package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vhoang/storefront/internal/adapter/storage"
	"github.com/vhoang/storefront/internal/core/domain"
)

func placeOrder(t *testing.T, store *storage.MemoryStore, userID string) *domain.Order {
	t.Helper()
	carts := NewCartService(store, store)
	checkout := NewCheckoutService(store, store, store, nil)
	ctx := context.Background()

	if _, err := carts.AddToCart(ctx, userID, 1, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := carts.AddToCart(ctx, userID, 2, 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := checkout.Checkout(ctx, userID, "1 Main St", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return order
}

func TestTransition_ForwardProgression(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")
	ctx := context.Background()

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		updated, err := orders.Transition(ctx, order.ID, next)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		if updated.Status != next {
			t.Errorf("expected status %s, got %s", next, updated.Status)
		}
	}

	// delivered is terminal
	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition out of delivered, got %v", err)
	}
}

func TestTransition_SkippingForwardIsAllowed(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")

	updated, err := orders.Transition(context.Background(), order.ID, domain.OrderStatusShipped)
	if err != nil {
		t.Fatalf("pending -> shipped failed: %v", err)
	}
	if updated.Status != domain.OrderStatusShipped {
		t.Errorf("expected shipped, got %s", updated.Status)
	}
}

func TestTransition_BackwardsIsRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")
	ctx := context.Background()

	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusPending); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition going backwards, got %v", err)
	}
	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusProcessing); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition repeating status, got %v", err)
	}
}

func TestTransition_CancelRestoresReservedStock(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")
	ctx := context.Background()

	if got := store.StockOf(1); got != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", got)
	}

	updated, err := orders.Transition(ctx, order.ID, domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", updated.Status)
	}

	// exactly the reserved quantities come back, no more, no less
	if got := store.StockOf(1); got != 5 {
		t.Errorf("expected stock of product 1 restored to 5, got %d", got)
	}
	if got := store.StockOf(2); got != 1 {
		t.Errorf("expected stock of product 2 restored to 1, got %d", got)
	}
}

func TestTransition_CancelMirrorsRestoreIntoGate(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	cache := newFakeCache()
	ctx := context.Background()
	cache.SetStock(ctx, 1, 5)
	cache.SetStock(ctx, 2, 1)

	carts := NewCartService(store, store)
	checkout := NewCheckoutService(store, store, store, cache)
	orders := NewOrderService(store, store, cache)

	if _, err := carts.AddToCart(ctx, "user-1", 1, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := checkout.Checkout(ctx, "user-1", "1 Main St", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	cache.mu.Lock()
	cached := cache.stock[1]
	cache.mu.Unlock()
	if cached != 5 {
		t.Errorf("expected gate counter back at 5, got %d", cached)
	}
}

func TestTransition_CancelAfterShippingKeepsStock(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")
	ctx := context.Background()

	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if got := store.StockOf(1); got != 3 {
		t.Errorf("expected stock untouched at 3, got %d", got)
	}
	reloaded, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if reloaded.Status != domain.OrderStatusShipped {
		t.Errorf("expected status still shipped, got %s", reloaded.Status)
	}
}

func TestTransition_UnknownOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)

	_, err := orders.Transition(context.Background(), "no-such-order", domain.OrderStatusProcessing)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	seedCatalog(store)
	orders := NewOrderService(store, store, nil)
	order := placeOrder(t, store, "user-1")

	_, err := orders.Transition(context.Background(), order.ID, domain.OrderStatus("refunded"))
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStockConservation(t *testing.T) {
	// ledger stock plus quantities held by non-cancelled orders stays equal
	// to the seeded stock across checkout and cancellation
	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{
		ID: 9, Name: "Widget", Price: decimal.RequireFromString("3.00"),
		StockQuantity: 10, Active: true,
	})
	carts := NewCartService(store, store)
	checkout := NewCheckoutService(store, store, store, nil)
	orders := NewOrderService(store, store, nil)
	ctx := context.Background()

	if _, err := carts.AddToCart(ctx, "user-1", 9, 4); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := checkout.Checkout(ctx, "user-1", "1 Main St", CheckoutOptions{})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if got := store.StockOf(9) + 4; got != 10 {
		t.Errorf("conservation violated after checkout: ledger+reserved = %d", got)
	}

	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got := store.StockOf(9); got != 10 {
		t.Errorf("conservation violated after cancel: ledger = %d", got)
	}
}
