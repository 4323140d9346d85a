package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhoang/storefront/internal/adapter/storage"
	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/core/service"
)

const (
	productID     = int64(1)
	initialStock  = 20
	totalRequests = 50
)

// Contention driver: many users race to check out the same product and the
// run verifies the no-oversell invariant end to end.
func main() {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{
		ID:            productID,
		Name:          "limited drop",
		Price:         decimal.RequireFromString("49.99"),
		StockQuantity: initialStock,
		Active:        true,
	})

	cartService := service.NewCartService(store, store)
	checkoutService := service.NewCheckoutService(store, store, store, nil)

	for i := 0; i < totalRequests; i++ {
		user := fmt.Sprintf("user-%d", i)
		if _, err := cartService.AddToCart(ctx, user, productID, 1); err != nil {
			log.Fatalf("failed to fill cart for %s: %v", user, err)
		}
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			user := fmt.Sprintf("user-%d", userID)
			_, err := checkoutService.Checkout(ctx, user, "1 Main St", service.CheckoutOptions{})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	log.Printf("completed %d checkouts in %v", totalRequests, elapsed)
	log.Printf("success: %d, failed: %d", successCount.Load(), failCount.Load())

	remaining := store.StockOf(productID)
	log.Printf("remaining stock: %d", remaining)

	if successCount.Load() != initialStock || remaining != 0 {
		log.Fatalf("OVERSELL CHECK FAILED: expected %d successes and 0 remaining", initialStock)
	}
	log.Println("oversell check passed")
}
