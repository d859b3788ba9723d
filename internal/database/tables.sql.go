package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, number, capacity, waiter_id, status, has_paid_tab, all_tabs_paid, occupied_since, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.WaiterID,
		&i.Status,
		&i.HasPaidTab,
		&i.AllTabsPaid,
		&i.OccupiedSince,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (number, capacity, waiter_id)
VALUES ($1, $2, $3)
RETURNING ` + tableColumns

type CreateTableParams struct {
	Number   int32       `json:"number"`
	Capacity int32       `json:"capacity"`
	WaiterID pgtype.UUID `json:"waiter_id"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.Number, arg.Capacity, arg.WaiterID))
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1
FOR UPDATE`

// GetTableForUpdate locks the table row. Callers that also lock tabs must take
// this lock first.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `-- name: ListTables :many
SELECT t.id, t.number, t.capacity, t.waiter_id, t.status, t.has_paid_tab, t.all_tabs_paid,
       t.occupied_since, t.created_at, t.updated_at,
       (SELECT COUNT(*) FROM tabs WHERE tabs.table_id = t.id AND tabs.status = 'OPEN') AS open_tabs
FROM tables t
ORDER BY t.number`

type ListTablesRow struct {
	Table
	OpenTabs int64 `json:"open_tabs"`
}

func (q *Queries) ListTables(ctx context.Context) ([]ListTablesRow, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListTablesRow{}
	for rows.Next() {
		var i ListTablesRow
		if err := rows.Scan(
			&i.ID,
			&i.Number,
			&i.Capacity,
			&i.WaiterID,
			&i.Status,
			&i.HasPaidTab,
			&i.AllTabsPaid,
			&i.OccupiedSince,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.OpenTabs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTableOccupancy = `-- name: UpdateTableOccupancy :one
UPDATE tables
SET status = $2, has_paid_tab = $3, all_tabs_paid = $4, occupied_since = $5, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableOccupancyParams struct {
	ID            uuid.UUID          `json:"id"`
	Status        string             `json:"status"`
	HasPaidTab    bool               `json:"has_paid_tab"`
	AllTabsPaid   bool               `json:"all_tabs_paid"`
	OccupiedSince pgtype.Timestamptz `json:"occupied_since"`
}

func (q *Queries) UpdateTableOccupancy(ctx context.Context, arg UpdateTableOccupancyParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableOccupancy,
		arg.ID,
		arg.Status,
		arg.HasPaidTab,
		arg.AllTabsPaid,
		arg.OccupiedSince,
	))
}

const updateTableWaiter = `-- name: UpdateTableWaiter :one
UPDATE tables SET waiter_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableWaiterParams struct {
	ID       uuid.UUID   `json:"id"`
	WaiterID pgtype.UUID `json:"waiter_id"`
}

func (q *Queries) UpdateTableWaiter(ctx context.Context, arg UpdateTableWaiterParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableWaiter, arg.ID, arg.WaiterID))
}
