package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, store_id, email, hashed_password, full_name, role, pin,
	is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName,
		&u.Role, &u.Pin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users
		WHERE email = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

type GetUserByStoreAndPinParams struct {
	StoreID uuid.UUID
	Pin     pgtype.Text
}

func (q *Queries) GetUserByStoreAndPin(ctx context.Context, arg GetUserByStoreAndPinParams) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users
		WHERE store_id = $1 AND pin = $2 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, arg.StoreID, arg.Pin))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users
		WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListUsersByStore(ctx context.Context, storeID uuid.UUID) ([]User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users
		WHERE store_id = $1 AND is_active = true ORDER BY full_name`
	rows, err := q.db.Query(ctx, sql, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

type CreateUserParams struct {
	StoreID        uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `
		INSERT INTO users (store_id, email, hashed_password, full_name, role, pin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.StoreID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role, arg.Pin))
}

type UpdateUserParams struct {
	ID       uuid.UUID
	StoreID  uuid.UUID
	Email    string
	FullName string
	Role     string
	Pin      pgtype.Text
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	const sql = `
		UPDATE users
		SET email = $3, full_name = $4, role = $5, pin = $6, updated_at = now()
		WHERE id = $1 AND store_id = $2 AND is_active = true
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.ID, arg.StoreID, arg.Email, arg.FullName, arg.Role, arg.Pin))
}

type SoftDeleteUserParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

func (q *Queries) SoftDeleteUser(ctx context.Context, arg SoftDeleteUserParams) (uuid.UUID, error) {
	const sql = `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1 AND store_id = $2 AND is_active = true
		RETURNING id`
	var out uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.StoreID).Scan(&out)
	return out, err
}
