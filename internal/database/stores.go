package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const storeColumns = `id, name, address, phone, is_active, created_at, updated_at`

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.Phone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) ListStores(ctx context.Context) ([]Store, error) {
	const sql = `SELECT ` + storeColumns + ` FROM stores
		WHERE is_active = true ORDER BY name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	const sql = `SELECT ` + storeColumns + ` FROM stores WHERE id = $1 AND is_active = true`
	return scanStore(q.db.QueryRow(ctx, sql, id))
}

type CreateStoreParams struct {
	Name    string
	Address pgtype.Text
	Phone   pgtype.Text
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	const sql = `
		INSERT INTO stores (name, address, phone)
		VALUES ($1, $2, $3)
		RETURNING ` + storeColumns
	return scanStore(q.db.QueryRow(ctx, sql, arg.Name, arg.Address, arg.Phone))
}

type UpdateStoreParams struct {
	ID      uuid.UUID
	Name    string
	Address pgtype.Text
	Phone   pgtype.Text
}

func (q *Queries) UpdateStore(ctx context.Context, arg UpdateStoreParams) (Store, error) {
	const sql = `
		UPDATE stores
		SET name = $2, address = $3, phone = $4, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + storeColumns
	return scanStore(q.db.QueryRow(ctx, sql, arg.ID, arg.Name, arg.Address, arg.Phone))
}

func (q *Queries) SoftDeleteStore(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE stores SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var out uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&out)
	return out, err
}
