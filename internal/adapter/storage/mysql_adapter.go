package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/craftly/cart-engine/internal/core/domain"
	"github.com/craftly/cart-engine/internal/port"
)

// MySQLAdapter is the production remote cart store and the read-only
// catalog source.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) FetchCart(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, added_at
		FROM cart_items WHERE cart_id = ?
		ORDER BY added_at, product_id`, cartID)
	if err != nil {
		return nil, wrapRemoteErr("fetch cart", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var (
			item  domain.CartItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse unit price %q: %w", price, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) UpsertItem(ctx context.Context, cartID string, item domain.CartItem) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = NOW()`,
		cartID, item.ProductID, item.Quantity, item.UnitPrice.StringFixed(2), item.AddedAt,
	)
	return wrapRemoteErr("upsert cart item", err)
}

func (m *MySQLAdapter) RemoveItem(ctx context.Context, cartID string, productID int64) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID)
	return wrapRemoteErr("remove cart item", err)
}

func (m *MySQLAdapter) ReplaceCart(ctx context.Context, cartID string, items []domain.CartItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return wrapRemoteErr("clear cart", err)
	}
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, added_at, updated_at)
			VALUES (?, ?, ?, ?, ?, NOW())`,
			cartID, item.ProductID, item.Quantity, item.UnitPrice.StringFixed(2), item.AddedAt,
		)
		if err != nil {
			return wrapRemoteErr("insert cart item", err)
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.db.PingContext(ctx)
}

// UnitPrice implements the catalog reader against the products table.
func (m *MySQLAdapter) UnitPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var price string
	err := m.db.QueryRowContext(ctx,
		`SELECT price FROM products WHERE id = ?`, productID,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, port.ErrProductNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query product price: %w", err)
	}
	return decimal.NewFromString(price)
}

// wrapRemoteErr maps MySQL privilege failures onto the permanent-error
// sentinel so the cart store stops retrying them blindly.
func wrapRemoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1142: // access denied variants
			return fmt.Errorf("%s: %w: %s", op, port.ErrUnauthorized, myErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
