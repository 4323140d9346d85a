package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/port"
)

// CartService manages per-user cart lines. The stock check here is advisory:
// quantities are clamped to the live stock seen at call time, but the
// authoritative gate is checkout.
type CartService struct {
	carts   port.CartRepository
	catalog port.CatalogReader
}

func NewCartService(carts port.CartRepository, catalog port.CatalogReader) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
	}
}

func (s *CartService) resolveActive(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.ProductUnavailableError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve product %d: %w", productID, err)
	}
	if !product.Active {
		return nil, &domain.ProductUnavailableError{ProductID: productID}
	}
	return product, nil
}

// AddToCart creates a line for (user, product) or increments an existing one.
// The resulting quantity is clamped to the product's live stock; a fresh add
// that would clamp to zero is rejected instead of creating an empty line.
func (s *CartService) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartLine, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.resolveActive(ctx, productID)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.GetLine(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("get cart line: %w", err)
	}

	want := quantity
	if existing != nil {
		want += existing.Quantity
	}
	if want > product.StockQuantity {
		want = product.StockQuantity
	}
	if want < 1 {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}

	line := domain.CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  want,
		CreatedAt: time.Now(),
	}
	if existing != nil {
		line.CreatedAt = existing.CreatedAt
	}

	if err := s.carts.SaveLine(ctx, line); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}
	return &line, nil
}

// SetQuantity overwrites a line's quantity, subject to the same soft clamp as
// AddToCart. Quantity zero deletes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartLine, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		if err := s.carts.RemoveLine(ctx, userID, productID); err != nil {
			return nil, fmt.Errorf("remove cart line: %w", err)
		}
		return nil, nil
	}

	product, err := s.resolveActive(ctx, productID)
	if err != nil {
		return nil, err
	}

	want := quantity
	if want > product.StockQuantity {
		want = product.StockQuantity
	}
	if want < 1 {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}

	existing, err := s.carts.GetLine(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("get cart line: %w", err)
	}

	line := domain.CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  want,
		CreatedAt: time.Now(),
	}
	if existing != nil {
		line.CreatedAt = existing.CreatedAt
	}

	if err := s.carts.SaveLine(ctx, line); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}
	return &line, nil
}

// RemoveFromCart deletes the line if present; a missing line is not an error.
func (s *CartService) RemoveFromCart(ctx context.Context, userID string, productID int64) error {
	return s.carts.RemoveLine(ctx, userID, productID)
}

// ListCart returns the user's lines in insertion order.
func (s *CartService) ListCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.carts.ListLines(ctx, userID)
}
