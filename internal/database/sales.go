package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, store_id, folio_seq, folio, total, methods, assigned_to,
	created_by, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.StoreID, &s.FolioSeq, &s.Folio, &s.Total, &s.Methods,
		&s.AssignedTo, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

// GetNextSaleFolio returns the next folio sequence for a store's sales.
// Same race model as layaway folios: unique index + caller retry.
func (q *Queries) GetNextSaleFolio(ctx context.Context, storeID uuid.UUID) (int32, error) {
	const sql = `SELECT COALESCE(MAX(folio_seq), 0) + 1 FROM sales WHERE store_id = $1`
	var next int32
	err := q.db.QueryRow(ctx, sql, storeID).Scan(&next)
	return next, err
}

type CreateSaleParams struct {
	StoreID    uuid.UUID
	FolioSeq   int32
	Folio      string
	Total      pgtype.Numeric
	Methods    []byte
	AssignedTo uuid.UUID
	CreatedBy  uuid.UUID
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	const sql = `
		INSERT INTO sales (store_id, folio_seq, folio, total, methods, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + saleColumns
	return scanSale(q.db.QueryRow(ctx, sql,
		arg.StoreID, arg.FolioSeq, arg.Folio, arg.Total, arg.Methods,
		arg.AssignedTo, arg.CreatedBy))
}

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	const sql = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	return scanSale(q.db.QueryRow(ctx, sql, id))
}

type ListSalesParams struct {
	StoreID   pgtype.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListSales(ctx context.Context, arg ListSalesParams) ([]Sale, error) {
	const sql = `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE ($1::uuid IS NULL OR store_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := q.db.Query(ctx, sql, arg.StoreID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const saleItemColumns = `id, sale_id, variant_id, display_name, sku, quantity, unit_price, subtotal`

func scanSaleItem(row pgx.Row) (SaleItem, error) {
	var it SaleItem
	err := row.Scan(&it.ID, &it.SaleID, &it.VariantID, &it.DisplayName, &it.Sku,
		&it.Quantity, &it.UnitPrice, &it.Subtotal)
	return it, err
}

type CreateSaleItemParams struct {
	SaleID      uuid.UUID
	VariantID   uuid.UUID
	DisplayName string
	Sku         string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	const sql = `
		INSERT INTO sale_items (sale_id, variant_id, display_name, sku, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + saleItemColumns
	return scanSaleItem(q.db.QueryRow(ctx, sql,
		arg.SaleID, arg.VariantID, arg.DisplayName, arg.Sku, arg.Quantity,
		arg.UnitPrice, arg.Subtotal))
}

func (q *Queries) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	const sql = `SELECT ` + saleItemColumns + ` FROM sale_items WHERE sale_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		it, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
