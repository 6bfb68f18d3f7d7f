package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, category, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type ListProductsParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	const sql = `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active = true
		  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = true`
	return scanProduct(q.db.QueryRow(ctx, sql, id))
}

type CreateProductParams struct {
	Name     string
	Category pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	const sql = `
		INSERT INTO products (name, category)
		VALUES ($1, $2)
		RETURNING ` + productColumns
	return scanProduct(q.db.QueryRow(ctx, sql, arg.Name, arg.Category))
}

type UpdateProductParams struct {
	ID       uuid.UUID
	Name     string
	Category pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	const sql = `
		UPDATE products
		SET name = $2, category = $3, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + productColumns
	return scanProduct(q.db.QueryRow(ctx, sql, arg.ID, arg.Name, arg.Category))
}

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE products SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var out uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&out)
	return out, err
}

const variantColumns = `id, product_id, sku, barcode, size, color, price, is_active,
	created_at, updated_at`

func scanVariant(row pgx.Row) (ProductVariant, error) {
	var v ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Sku, &v.Barcode, &v.Size, &v.Color,
		&v.Price, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (q *Queries) ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductVariant, error) {
	const sql = `SELECT ` + variantColumns + ` FROM product_variants
		WHERE product_id = $1 AND is_active = true ORDER BY sku`
	rows, err := q.db.Query(ctx, sql, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ProductVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (q *Queries) GetVariant(ctx context.Context, id uuid.UUID) (ProductVariant, error) {
	const sql = `SELECT ` + variantColumns + ` FROM product_variants
		WHERE id = $1 AND is_active = true`
	return scanVariant(q.db.QueryRow(ctx, sql, id))
}

// GetVariantForLayawayRow joins the owning product so the item builder
// can snapshot a display name in one query.
type GetVariantForLayawayRow struct {
	ID          uuid.UUID
	Sku         string
	Size        pgtype.Text
	Color       pgtype.Text
	Price       pgtype.Numeric
	ProductName string
}

func (q *Queries) GetVariantForLayaway(ctx context.Context, id uuid.UUID) (GetVariantForLayawayRow, error) {
	const sql = `
		SELECT v.id, v.sku, v.size, v.color, v.price, p.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1 AND v.is_active = true AND p.is_active = true`
	var row GetVariantForLayawayRow
	err := q.db.QueryRow(ctx, sql, id).Scan(
		&row.ID, &row.Sku, &row.Size, &row.Color, &row.Price, &row.ProductName)
	return row, err
}

// GetVariantByCode looks a variant up by SKU or barcode, the scanner path
// at the register.
func (q *Queries) GetVariantByCode(ctx context.Context, code string) (ProductVariant, error) {
	const sql = `SELECT ` + variantColumns + ` FROM product_variants
		WHERE (sku = $1 OR barcode = $1) AND is_active = true
		LIMIT 1`
	return scanVariant(q.db.QueryRow(ctx, sql, code))
}

type CreateVariantParams struct {
	ProductID uuid.UUID
	Sku       string
	Barcode   pgtype.Text
	Size      pgtype.Text
	Color     pgtype.Text
	Price     pgtype.Numeric
}

func (q *Queries) CreateVariant(ctx context.Context, arg CreateVariantParams) (ProductVariant, error) {
	const sql = `
		INSERT INTO product_variants (product_id, sku, barcode, size, color, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + variantColumns
	return scanVariant(q.db.QueryRow(ctx, sql,
		arg.ProductID, arg.Sku, arg.Barcode, arg.Size, arg.Color, arg.Price))
}

type UpdateVariantParams struct {
	ID      uuid.UUID
	Sku     string
	Barcode pgtype.Text
	Size    pgtype.Text
	Color   pgtype.Text
	Price   pgtype.Numeric
}

func (q *Queries) UpdateVariant(ctx context.Context, arg UpdateVariantParams) (ProductVariant, error) {
	const sql = `
		UPDATE product_variants
		SET sku = $2, barcode = $3, size = $4, color = $5, price = $6, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + variantColumns
	return scanVariant(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Sku, arg.Barcode, arg.Size, arg.Color, arg.Price))
}

func (q *Queries) SoftDeleteVariant(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE product_variants SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var out uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&out)
	return out, err
}
