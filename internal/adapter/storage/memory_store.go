package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/port"
)

// MemoryStore implements the storage ports in memory. Stock counters live in
// per-product entries with their own locks, so reservations for unrelated
// products never serialize against each other.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	stocks   map[int64]*stockEntry
	carts    map[string][]domain.CartLine
	orders   map[string]*domain.Order
}

type stockEntry struct {
	mu    sync.Mutex
	count int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*domain.Product),
		stocks:   make(map[int64]*stockEntry),
		carts:    make(map[string][]domain.CartLine),
		orders:   make(map[string]*domain.Order),
	}
}

// SeedProduct registers a product and initializes its stock counter.
func (s *MemoryStore) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
	s.stocks[p.ID] = &stockEntry{count: p.StockQuantity}
}

// SetPrice overwrites a product's live catalog price.
func (s *MemoryStore) SetPrice(productID int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.Price = price
	}
}

// SetActive flips a product's active flag.
func (s *MemoryStore) SetActive(productID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.Active = active
	}
}

// StockOf returns the current ledger count for a product.
func (s *MemoryStore) StockOf(productID int64) int {
	s.mu.RLock()
	entry, ok := s.stocks[productID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.count
}

func (s *MemoryStore) entry(productID int64) *stockEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stocks[productID]
}

// GetProduct implements port.CatalogReader.
func (s *MemoryStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	s.mu.RLock()
	p, ok := s.products[productID]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	cp := *p
	s.mu.RUnlock()

	cp.StockQuantity = s.StockOf(productID)
	return &cp, nil
}

// TryReserve implements the check-then-decrement step under the product's own
// lock; concurrent reservations against the same product cannot interleave.
func (s *MemoryStore) TryReserve(ctx context.Context, productID int64, quantity int) error {
	entry := s.entry(productID)
	if entry == nil {
		return &domain.ProductUnavailableError{ProductID: productID}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.count < quantity {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: entry.count,
		}
	}
	entry.count -= quantity
	return nil
}

func (s *MemoryStore) Restore(ctx context.Context, productID int64, quantity int) error {
	return s.addStock(productID, quantity)
}

func (s *MemoryStore) addStock(productID int64, delta int) error {
	entry := s.entry(productID)
	if entry == nil {
		return &domain.ProductUnavailableError{ProductID: productID}
	}
	entry.mu.Lock()
	entry.count += delta
	entry.mu.Unlock()
	return nil
}

// GetLine implements port.CartRepository; nil means no line for the pair.
func (s *MemoryStore) GetLine(ctx context.Context, userID string, productID int64) (*domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, line := range s.carts[userID] {
		if line.ProductID == productID {
			cp := line
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SaveLine(ctx context.Context, line domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[line.UserID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity = line.Quantity
			return nil
		}
	}
	s.carts[line.UserID] = append(lines, line)
	return nil
}

func (s *MemoryStore) RemoveLine(ctx context.Context, userID string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[userID]
	for i := range lines {
		if lines[i].ProductID == productID {
			s.carts[userID] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.carts[userID]
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

// GetOrder implements port.OrderRepository.
func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return copyOrder(order), nil
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = make([]domain.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

// WithinTx runs fn against a journaled view: each mutation records its undo,
// and a failing fn replays the journal in reverse before returning.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) (err error) {
	t := &memoryTx{store: s}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
		if err != nil {
			t.rollback()
		}
	}()
	err = fn(t)
	return err
}

type memoryTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) TryReserve(ctx context.Context, productID int64, quantity int) error {
	if err := t.store.TryReserve(ctx, productID, quantity); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { _ = t.store.addStock(productID, quantity) })
	return nil
}

func (t *memoryTx) Restore(ctx context.Context, productID int64, quantity int) error {
	if err := t.store.addStock(productID, quantity); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { _ = t.store.addStock(productID, -quantity) })
	return nil
}

func (t *memoryTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, exists := t.store.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	t.store.orders[order.ID] = copyOrder(order)
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		delete(t.store.orders, order.ID)
		t.store.mu.Unlock()
	})
	return nil
}

func (t *memoryTx) ClearCart(ctx context.Context, userID string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	saved := t.store.carts[userID]
	delete(t.store.carts, userID)
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		t.store.carts[userID] = saved
		t.store.mu.Unlock()
	})
	return nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	return t.store.GetOrder(ctx, orderID)
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	order, ok := t.store.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	prev := order.Status
	order.Status = status
	t.undo = append(t.undo, func() {
		t.store.mu.Lock()
		if o, ok := t.store.orders[orderID]; ok {
			o.Status = prev
		}
		t.store.mu.Unlock()
	})
	return nil
}
