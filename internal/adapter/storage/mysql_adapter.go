package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vhoang/storefront/internal/core/domain"
	"github.com/vhoang/storefront/internal/port"
)

// MySQLAdapter implements the storage ports over MySQL. The checkout unit of
// work maps onto a single sql.Tx; per-product serialization of the
// check-then-decrement step comes from the conditional UPDATE's row lock.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return getProduct(ctx, m.db, productID)
}

func getProduct(ctx context.Context, q execer, productID int64) (*domain.Product, error) {
	var p domain.Product
	var categoryID sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, brand, model, price, stock_quantity, is_active, category_id, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Model, &p.Price,
		&p.StockQuantity, &p.Active, &categoryID, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	p.CategoryID = categoryID.Int64
	return &p, nil
}

func (m *MySQLAdapter) GetLine(ctx context.Context, userID string, productID int64) (*domain.CartLine, error) {
	var line domain.CartLine
	err := m.db.QueryRowContext(ctx, `
		SELECT user_id, product_id, quantity, created_at
		FROM cart_lines WHERE user_id = ? AND product_id = ?`, userID, productID,
	).Scan(&line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart line: %w", err)
	}
	return &line, nil
}

func (m *MySQLAdapter) SaveLine(ctx context.Context, line domain.CartLine) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		line.UserID, line.ProductID, line.Quantity, line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RemoveLine(ctx context.Context, userID string, productID int64) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, created_at
		FROM cart_lines WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (m *MySQLAdapter) Clear(ctx context.Context, userID string) error {
	return clearCart(ctx, m.db, userID)
}

func clearCart(ctx context.Context, q execer, userID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return getOrder(ctx, m.db, orderID, false)
}

func getOrder(ctx context.Context, q execer, orderID string, forUpdate bool) (*domain.Order, error) {
	query := `
		SELECT id, order_number, user_id, status, total_amount, shipping_address, phone_number, notes, created_at, updated_at
		FROM orders WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o domain.Order
	var phone, notes sql.NullString
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.Number, &o.UserID, &o.Status, &o.Total,
		&o.ShippingAddress, &phone, &notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.PhoneNumber = phone.String
	o.Notes = notes.String

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// ListStock returns the stock counters of all active products, used to prime
// the cache gate at startup.
func (m *MySQLAdapter) ListStock(ctx context.Context) (map[int64]int, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, stock_quantity FROM products WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	stock := make(map[int64]int)
	for rows.Next() {
		var id int64
		var quantity int
		if err := rows.Scan(&id, &quantity); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stock[id] = quantity
	}
	return stock, rows.Err()
}

// WithinTx runs fn inside one sql.Tx; fn returning an error (or panicking)
// rolls every mutation back.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type mysqlTx struct {
	tx *sql.Tx
}

// TryReserve decrements stock with a conditional UPDATE: the WHERE clause is
// the atomic check, so stock_quantity can never go negative.
func (t *mysqlTx) TryReserve(ctx context.Context, productID int64, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = NOW()
		WHERE id = ? AND is_active = 1 AND stock_quantity >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows != 0 {
		return nil
	}

	var available int
	var active bool
	err = t.tx.QueryRowContext(ctx,
		`SELECT stock_quantity, is_active FROM products WHERE id = ?`, productID,
	).Scan(&available, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return &domain.ProductUnavailableError{ProductID: productID}
	}
	if err != nil {
		return fmt.Errorf("query stock: %w", err)
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: available,
	}
}

func (t *mysqlTx) Restore(ctx context.Context, productID int64, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = NOW()
		WHERE id = ?`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &domain.ProductUnavailableError{ProductID: productID}
	}
	return nil
}

func (t *mysqlTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, total_amount, shipping_address, phone_number, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Number, order.UserID, order.Status, order.Total,
		order.ShippingAddress, order.PhoneNumber, order.Notes,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, t.tx, userID)
}

func (t *mysqlTx) GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	return getOrder(ctx, t.tx, orderID, true)
}

func (t *mysqlTx) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		status, orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}
