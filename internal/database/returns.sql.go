package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const returnColumns = `id, order_id, category, subcategory, description, source_type, source_id, image_key,
requested_by, status, resolved_by, resolved_at, created_at`

func scanReturnRequest(row interface{ Scan(...any) error }) (ReturnRequest, error) {
	var i ReturnRequest
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Category,
		&i.Subcategory,
		&i.Description,
		&i.SourceType,
		&i.SourceID,
		&i.ImageKey,
		&i.RequestedBy,
		&i.Status,
		&i.ResolvedBy,
		&i.ResolvedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createReturnRequest = `-- name: CreateReturnRequest :one
INSERT INTO return_requests (order_id, category, subcategory, description, source_type, source_id,
                             image_key, requested_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + returnColumns

type CreateReturnRequestParams struct {
	OrderID     uuid.UUID   `json:"order_id"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Description pgtype.Text `json:"description"`
	SourceType  pgtype.Text `json:"source_type"`
	SourceID    pgtype.UUID `json:"source_id"`
	ImageKey    pgtype.Text `json:"image_key"`
	RequestedBy uuid.UUID   `json:"requested_by"`
}

func (q *Queries) CreateReturnRequest(ctx context.Context, arg CreateReturnRequestParams) (ReturnRequest, error) {
	return scanReturnRequest(q.db.QueryRow(ctx, createReturnRequest,
		arg.OrderID,
		arg.Category,
		arg.Subcategory,
		arg.Description,
		arg.SourceType,
		arg.SourceID,
		arg.ImageKey,
		arg.RequestedBy,
	))
}

const getReturnRequest = `-- name: GetReturnRequest :one
SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1`

func (q *Queries) GetReturnRequest(ctx context.Context, id uuid.UUID) (ReturnRequest, error) {
	return scanReturnRequest(q.db.QueryRow(ctx, getReturnRequest, id))
}

const getReturnRequestForUpdate = `-- name: GetReturnRequestForUpdate :one
SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1
FOR UPDATE`

func (q *Queries) GetReturnRequestForUpdate(ctx context.Context, id uuid.UUID) (ReturnRequest, error) {
	return scanReturnRequest(q.db.QueryRow(ctx, getReturnRequestForUpdate, id))
}

const resolveReturnRequest = `-- name: ResolveReturnRequest :one
UPDATE return_requests
SET status = $2, resolved_by = $3, resolved_at = $4
WHERE id = $1
RETURNING ` + returnColumns

type ResolveReturnRequestParams struct {
	ID         uuid.UUID          `json:"id"`
	Status     string             `json:"status"`
	ResolvedBy pgtype.UUID        `json:"resolved_by"`
	ResolvedAt pgtype.Timestamptz `json:"resolved_at"`
}

func (q *Queries) ResolveReturnRequest(ctx context.Context, arg ResolveReturnRequestParams) (ReturnRequest, error) {
	return scanReturnRequest(q.db.QueryRow(ctx, resolveReturnRequest,
		arg.ID,
		arg.Status,
		arg.ResolvedBy,
		arg.ResolvedAt,
	))
}

const setReturnImage = `-- name: SetReturnImage :one
UPDATE return_requests SET image_key = $2
WHERE id = $1
RETURNING ` + returnColumns

type SetReturnImageParams struct {
	ID       uuid.UUID   `json:"id"`
	ImageKey pgtype.Text `json:"image_key"`
}

func (q *Queries) SetReturnImage(ctx context.Context, arg SetReturnImageParams) (ReturnRequest, error) {
	return scanReturnRequest(q.db.QueryRow(ctx, setReturnImage, arg.ID, arg.ImageKey))
}

const listReturnRequests = `-- name: ListReturnRequests :many
SELECT ` + returnColumns + ` FROM return_requests
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC`

func (q *Queries) ListReturnRequests(ctx context.Context, status pgtype.Text) ([]ReturnRequest, error) {
	rows, err := q.db.Query(ctx, listReturnRequests, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ReturnRequest{}
	for rows.Next() {
		i, err := scanReturnRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
