package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const installmentColumns = `id, layaway_id, folio_seq, folio, amount, methods, notes,
	assigned_to, created_by, created_at`

func scanInstallment(row pgx.Row) (Installment, error) {
	var a Installment
	err := row.Scan(
		&a.ID, &a.LayawayID, &a.FolioSeq, &a.Folio, &a.Amount, &a.Methods, &a.Notes,
		&a.AssignedTo, &a.CreatedBy, &a.CreatedAt,
	)
	return a, err
}

// GetNextInstallmentFolio returns the next abono sequence for a layaway.
// Callers hold the layaway row lock, so this cannot race.
func (q *Queries) GetNextInstallmentFolio(ctx context.Context, layawayID uuid.UUID) (int32, error) {
	const sql = `SELECT COALESCE(MAX(folio_seq), 0) + 1 FROM installments WHERE layaway_id = $1`
	var next int32
	err := q.db.QueryRow(ctx, sql, layawayID).Scan(&next)
	return next, err
}

type CreateInstallmentParams struct {
	LayawayID  uuid.UUID
	FolioSeq   int32
	Folio      string
	Amount     pgtype.Numeric
	Methods    []byte
	Notes      pgtype.Text
	AssignedTo uuid.UUID
	CreatedBy  uuid.UUID
}

func (q *Queries) CreateInstallment(ctx context.Context, arg CreateInstallmentParams) (Installment, error) {
	const sql = `
		INSERT INTO installments (layaway_id, folio_seq, folio, amount, methods, notes,
			assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + installmentColumns
	return scanInstallment(q.db.QueryRow(ctx, sql,
		arg.LayawayID, arg.FolioSeq, arg.Folio, arg.Amount, arg.Methods, arg.Notes,
		arg.AssignedTo, arg.CreatedBy,
	))
}

// ListInstallmentsByLayaway returns the abono history newest first; the
// payment screens render it in that order.
func (q *Queries) ListInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) ([]Installment, error) {
	const sql = `SELECT ` + installmentColumns + ` FROM installments
		WHERE layaway_id = $1 ORDER BY created_at DESC`
	rows, err := q.db.Query(ctx, sql, layawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Installment
	for rows.Next() {
		a, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// SumInstallmentsByLayaway returns the authoritative paid total straight
// from the ledger rows, independent of the cached total_paid column.
func (q *Queries) SumInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) (pgtype.Numeric, error) {
	const sql = `SELECT COALESCE(SUM(amount), 0) FROM installments WHERE layaway_id = $1`
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, sql, layawayID).Scan(&total)
	return total, err
}
