package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const layawayColumns = `id, store_id, folio_seq, folio, customer_name, customer_phone,
	customer_email, customer_notes, estimated_delivery, total, total_paid, status,
	created_by, created_at, updated_at`

func scanLayaway(row pgx.Row) (Layaway, error) {
	var l Layaway
	err := row.Scan(
		&l.ID, &l.StoreID, &l.FolioSeq, &l.Folio, &l.CustomerName, &l.CustomerPhone,
		&l.CustomerEmail, &l.CustomerNotes, &l.EstimatedDelivery, &l.Total, &l.TotalPaid,
		&l.Status, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// GetNextLayawayFolio returns the next folio sequence for a store.
// Concurrent callers can receive the same value; the unique constraint on
// (store_id, folio_seq) plus the caller's retry loop resolve the race.
func (q *Queries) GetNextLayawayFolio(ctx context.Context, storeID uuid.UUID) (int32, error) {
	const sql = `SELECT COALESCE(MAX(folio_seq), 0) + 1 FROM layaways WHERE store_id = $1`
	var next int32
	err := q.db.QueryRow(ctx, sql, storeID).Scan(&next)
	return next, err
}

type CreateLayawayParams struct {
	StoreID           uuid.UUID
	FolioSeq          int32
	Folio             string
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     pgtype.Text
	CustomerNotes     pgtype.Text
	EstimatedDelivery pgtype.Date
	Total             pgtype.Numeric
	CreatedBy         uuid.UUID
}

func (q *Queries) CreateLayaway(ctx context.Context, arg CreateLayawayParams) (Layaway, error) {
	const sql = `
		INSERT INTO layaways (store_id, folio_seq, folio, customer_name, customer_phone,
			customer_email, customer_notes, estimated_delivery, total, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + layawayColumns
	return scanLayaway(q.db.QueryRow(ctx, sql,
		arg.StoreID, arg.FolioSeq, arg.Folio, arg.CustomerName, arg.CustomerPhone,
		arg.CustomerEmail, arg.CustomerNotes, arg.EstimatedDelivery, arg.Total, arg.CreatedBy,
	))
}

func (q *Queries) GetLayaway(ctx context.Context, id uuid.UUID) (Layaway, error) {
	const sql = `SELECT ` + layawayColumns + ` FROM layaways WHERE id = $1`
	return scanLayaway(q.db.QueryRow(ctx, sql, id))
}

// GetLayawayForUpdate locks the layaway row for the duration of the
// transaction, serializing concurrent abono inserts and edits.
func (q *Queries) GetLayawayForUpdate(ctx context.Context, id uuid.UUID) (Layaway, error) {
	const sql = `SELECT ` + layawayColumns + ` FROM layaways WHERE id = $1 FOR NO KEY UPDATE`
	return scanLayaway(q.db.QueryRow(ctx, sql, id))
}

type GetLayawayByFolioParams struct {
	Folio   string
	StoreID pgtype.UUID
}

func (q *Queries) GetLayawayByFolio(ctx context.Context, arg GetLayawayByFolioParams) (Layaway, error) {
	const sql = `
		SELECT ` + layawayColumns + `
		FROM layaways
		WHERE folio = $1 AND ($2::uuid IS NULL OR store_id = $2)
		ORDER BY created_at DESC
		LIMIT 1`
	return scanLayaway(q.db.QueryRow(ctx, sql, arg.Folio, arg.StoreID))
}

type ListLayawaysParams struct {
	StoreID   pgtype.UUID
	Status    NullLayawayStatus
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Search    pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListLayaways(ctx context.Context, arg ListLayawaysParams) ([]Layaway, error) {
	const sql = `
		SELECT ` + layawayColumns + `
		FROM layaways
		WHERE ($1::uuid IS NULL OR store_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		  AND ($5::text IS NULL OR customer_name ILIKE '%' || $5 || '%'
			OR customer_phone ILIKE '%' || $5 || '%'
			OR folio ILIKE '%' || $5 || '%')
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`

	var status pgtype.Text
	if arg.Status.Valid {
		status = pgtype.Text{String: string(arg.Status.LayawayStatus), Valid: true}
	}

	rows, err := q.db.Query(ctx, sql,
		arg.StoreID, status, arg.StartDate, arg.EndDate, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Layaway
	for rows.Next() {
		l, err := scanLayaway(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

type UpdateLayawayParams struct {
	ID                uuid.UUID
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     pgtype.Text
	CustomerNotes     pgtype.Text
	EstimatedDelivery pgtype.Date
	Total             pgtype.Numeric
}

func (q *Queries) UpdateLayaway(ctx context.Context, arg UpdateLayawayParams) (Layaway, error) {
	const sql = `
		UPDATE layaways
		SET customer_name = $2, customer_phone = $3, customer_email = $4,
			customer_notes = $5, estimated_delivery = $6, total = $7, updated_at = now()
		WHERE id = $1
		RETURNING ` + layawayColumns
	return scanLayaway(q.db.QueryRow(ctx, sql,
		arg.ID, arg.CustomerName, arg.CustomerPhone, arg.CustomerEmail,
		arg.CustomerNotes, arg.EstimatedDelivery, arg.Total,
	))
}

type UpdateLayawayStatusParams struct {
	ID             uuid.UUID
	Status         LayawayStatus
	ExpectedStatus LayawayStatus
}

// UpdateLayawayStatus is a compare-and-set: it only updates when the row
// still holds ExpectedStatus, so a transition raced by another session
// surfaces as pgx.ErrNoRows instead of silently clobbering state.
func (q *Queries) UpdateLayawayStatus(ctx context.Context, arg UpdateLayawayStatusParams) (Layaway, error) {
	const sql = `
		UPDATE layaways
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + layawayColumns
	return scanLayaway(q.db.QueryRow(ctx, sql, arg.ID, arg.Status, arg.ExpectedStatus))
}

type AddLayawayPaymentParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

func (q *Queries) AddLayawayPayment(ctx context.Context, arg AddLayawayPaymentParams) (Layaway, error) {
	const sql = `
		UPDATE layaways
		SET total_paid = total_paid + $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + layawayColumns
	return scanLayaway(q.db.QueryRow(ctx, sql, arg.ID, arg.Amount))
}

// MarkLayawayPaid flips activo -> pagado. Returns pgx.ErrNoRows when the
// record is no longer activo.
func (q *Queries) MarkLayawayPaid(ctx context.Context, id uuid.UUID) (Layaway, error) {
	const sql = `
		UPDATE layaways
		SET status = 'pagado', updated_at = now()
		WHERE id = $1 AND status = 'activo'
		RETURNING ` + layawayColumns
	return scanLayaway(q.db.QueryRow(ctx, sql, id))
}

const layawayItemColumns = `id, layaway_id, item_type, variant_id, display_name, sku,
	quantity, unit_price, measurements, alteration_note, position`

func scanLayawayItem(row pgx.Row) (LayawayItem, error) {
	var it LayawayItem
	err := row.Scan(
		&it.ID, &it.LayawayID, &it.ItemType, &it.VariantID, &it.DisplayName, &it.Sku,
		&it.Quantity, &it.UnitPrice, &it.Measurements, &it.AlterationNote, &it.Position,
	)
	return it, err
}

type CreateLayawayItemParams struct {
	LayawayID      uuid.UUID
	ItemType       ItemType
	VariantID      pgtype.UUID
	DisplayName    string
	Sku            pgtype.Text
	Quantity       int32
	UnitPrice      pgtype.Numeric
	Measurements   []byte
	AlterationNote pgtype.Text
	Position       int32
}

func (q *Queries) CreateLayawayItem(ctx context.Context, arg CreateLayawayItemParams) (LayawayItem, error) {
	const sql = `
		INSERT INTO layaway_items (layaway_id, item_type, variant_id, display_name, sku,
			quantity, unit_price, measurements, alteration_note, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + layawayItemColumns
	return scanLayawayItem(q.db.QueryRow(ctx, sql,
		arg.LayawayID, arg.ItemType, arg.VariantID, arg.DisplayName, arg.Sku,
		arg.Quantity, arg.UnitPrice, arg.Measurements, arg.AlterationNote, arg.Position,
	))
}

// ListLayawayItems returns items in entry order; order is billing order.
func (q *Queries) ListLayawayItems(ctx context.Context, layawayID uuid.UUID) ([]LayawayItem, error) {
	const sql = `SELECT ` + layawayItemColumns + ` FROM layaway_items
		WHERE layaway_id = $1 ORDER BY position`
	rows, err := q.db.Query(ctx, sql, layawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LayawayItem
	for rows.Next() {
		it, err := scanLayawayItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteLayawayItems removes all items; the edit flow replaces the list
// wholesale inside a transaction.
func (q *Queries) DeleteLayawayItems(ctx context.Context, layawayID uuid.UUID) error {
	const sql = `DELETE FROM layaway_items WHERE layaway_id = $1`
	_, err := q.db.Exec(ctx, sql, layawayID)
	return err
}
