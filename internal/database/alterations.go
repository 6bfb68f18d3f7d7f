package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const alterationColumns = `id, name, suggested_price, is_active`

func scanAlteration(row pgx.Row) (Alteration, error) {
	var a Alteration
	err := row.Scan(&a.ID, &a.Name, &a.SuggestedPrice, &a.IsActive)
	return a, err
}

// ListAlterations returns the fixed arreglos catalog.
func (q *Queries) ListAlterations(ctx context.Context) ([]Alteration, error) {
	const sql = `SELECT ` + alterationColumns + ` FROM alterations
		WHERE is_active = true ORDER BY name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Alteration
	for rows.Next() {
		a, err := scanAlteration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (q *Queries) GetAlteration(ctx context.Context, id uuid.UUID) (Alteration, error) {
	const sql = `SELECT ` + alterationColumns + ` FROM alterations
		WHERE id = $1 AND is_active = true`
	return scanAlteration(q.db.QueryRow(ctx, sql, id))
}
