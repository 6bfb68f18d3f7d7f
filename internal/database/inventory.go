package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetStockParams struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
}

func (q *Queries) GetStock(ctx context.Context, arg GetStockParams) (StockLevel, error) {
	const sql = `SELECT store_id, variant_id, quantity, updated_at FROM stock_levels
		WHERE store_id = $1 AND variant_id = $2`
	var s StockLevel
	err := q.db.QueryRow(ctx, sql, arg.StoreID, arg.VariantID).
		Scan(&s.StoreID, &s.VariantID, &s.Quantity, &s.UpdatedAt)
	return s, err
}

// ListStockByStoreRow joins variant and product data for the stock screen.
type ListStockByStoreRow struct {
	VariantID   uuid.UUID
	Sku         string
	ProductName string
	Size        pgtype.Text
	Color       pgtype.Text
	Quantity    int32
}

func (q *Queries) ListStockByStore(ctx context.Context, storeID uuid.UUID) ([]ListStockByStoreRow, error) {
	const sql = `
		SELECT s.variant_id, v.sku, p.name, v.size, v.color, s.quantity
		FROM stock_levels s
		JOIN product_variants v ON v.id = s.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE s.store_id = $1 AND v.is_active = true
		ORDER BY p.name, v.sku`
	rows, err := q.db.Query(ctx, sql, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListStockByStoreRow
	for rows.Next() {
		var r ListStockByStoreRow
		if err := rows.Scan(&r.VariantID, &r.Sku, &r.ProductName, &r.Size, &r.Color, &r.Quantity); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type AdjustStockParams struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
	Delta     int32
}

// AdjustStock upserts and applies a signed delta. The CHECK constraint on
// quantity rejects adjustments that would go negative.
func (q *Queries) AdjustStock(ctx context.Context, arg AdjustStockParams) (StockLevel, error) {
	const sql = `
		INSERT INTO stock_levels (store_id, variant_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_id, variant_id)
		DO UPDATE SET quantity = stock_levels.quantity + $3, updated_at = now()
		RETURNING store_id, variant_id, quantity, updated_at`
	var s StockLevel
	err := q.db.QueryRow(ctx, sql, arg.StoreID, arg.VariantID, arg.Delta).
		Scan(&s.StoreID, &s.VariantID, &s.Quantity, &s.UpdatedAt)
	return s, err
}

type DecrementStockParams struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
	Quantity  int32
}

// DecrementStock removes quantity only when enough stock exists; callers
// treat pgx.ErrNoRows as "insufficient stock".
func (q *Queries) DecrementStock(ctx context.Context, arg DecrementStockParams) (StockLevel, error) {
	const sql = `
		UPDATE stock_levels
		SET quantity = quantity - $3, updated_at = now()
		WHERE store_id = $1 AND variant_id = $2 AND quantity >= $3
		RETURNING store_id, variant_id, quantity, updated_at`
	var s StockLevel
	err := q.db.QueryRow(ctx, sql, arg.StoreID, arg.VariantID, arg.Quantity).
		Scan(&s.StoreID, &s.VariantID, &s.Quantity, &s.UpdatedAt)
	return s, err
}

const transferColumns = `id, from_store_id, to_store_id, variant_id, quantity, notes,
	created_by, created_at`

func scanTransfer(row pgx.Row) (StockTransfer, error) {
	var t StockTransfer
	err := row.Scan(&t.ID, &t.FromStoreID, &t.ToStoreID, &t.VariantID, &t.Quantity,
		&t.Notes, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

type CreateTransferParams struct {
	FromStoreID uuid.UUID
	ToStoreID   uuid.UUID
	VariantID   uuid.UUID
	Quantity    int32
	Notes       pgtype.Text
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateTransfer(ctx context.Context, arg CreateTransferParams) (StockTransfer, error) {
	const sql = `
		INSERT INTO stock_transfers (from_store_id, to_store_id, variant_id, quantity, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + transferColumns
	return scanTransfer(q.db.QueryRow(ctx, sql,
		arg.FromStoreID, arg.ToStoreID, arg.VariantID, arg.Quantity, arg.Notes, arg.CreatedBy))
}

type ListTransfersParams struct {
	StoreID pgtype.UUID
	Limit   int32
	Offset  int32
}

func (q *Queries) ListTransfers(ctx context.Context, arg ListTransfersParams) ([]StockTransfer, error) {
	const sql = `
		SELECT ` + transferColumns + `
		FROM stock_transfers
		WHERE ($1::uuid IS NULL OR from_store_id = $1 OR to_store_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StockTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
