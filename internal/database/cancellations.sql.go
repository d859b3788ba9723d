package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cancellationColumns = `id, tab_id, category, reason, requested_by, status, approved_by, resolved_at, created_at`

func scanCancellationRequest(row interface{ Scan(...any) error }) (CancellationRequest, error) {
	var i CancellationRequest
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.Category,
		&i.Reason,
		&i.RequestedBy,
		&i.Status,
		&i.ApprovedBy,
		&i.ResolvedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createCancellationRequest = `-- name: CreateCancellationRequest :one
INSERT INTO cancellation_requests (tab_id, category, reason, requested_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + cancellationColumns

type CreateCancellationRequestParams struct {
	TabID       uuid.UUID   `json:"tab_id"`
	Category    string      `json:"category"`
	Reason      pgtype.Text `json:"reason"`
	RequestedBy uuid.UUID   `json:"requested_by"`
}

// CreateCancellationRequest fails with a 23505 on cancellation_requests_one_pending
// when the tab already has a PENDING request.
func (q *Queries) CreateCancellationRequest(ctx context.Context, arg CreateCancellationRequestParams) (CancellationRequest, error) {
	return scanCancellationRequest(q.db.QueryRow(ctx, createCancellationRequest,
		arg.TabID,
		arg.Category,
		arg.Reason,
		arg.RequestedBy,
	))
}

const getCancellationRequest = `-- name: GetCancellationRequest :one
SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`

func (q *Queries) GetCancellationRequest(ctx context.Context, id uuid.UUID) (CancellationRequest, error) {
	return scanCancellationRequest(q.db.QueryRow(ctx, getCancellationRequest, id))
}

const getCancellationRequestForUpdate = `-- name: GetCancellationRequestForUpdate :one
SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1
FOR UPDATE`

func (q *Queries) GetCancellationRequestForUpdate(ctx context.Context, id uuid.UUID) (CancellationRequest, error) {
	return scanCancellationRequest(q.db.QueryRow(ctx, getCancellationRequestForUpdate, id))
}

const getPendingCancellationByTab = `-- name: GetPendingCancellationByTab :one
SELECT ` + cancellationColumns + ` FROM cancellation_requests
WHERE tab_id = $1 AND status = 'PENDING'`

func (q *Queries) GetPendingCancellationByTab(ctx context.Context, tabID uuid.UUID) (CancellationRequest, error) {
	return scanCancellationRequest(q.db.QueryRow(ctx, getPendingCancellationByTab, tabID))
}

const resolveCancellationRequest = `-- name: ResolveCancellationRequest :one
UPDATE cancellation_requests
SET status = $2, approved_by = $3, resolved_at = $4
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + cancellationColumns

type ResolveCancellationRequestParams struct {
	ID         uuid.UUID          `json:"id"`
	Status     string             `json:"status"`
	ApprovedBy pgtype.UUID        `json:"approved_by"`
	ResolvedAt pgtype.Timestamptz `json:"resolved_at"`
}

func (q *Queries) ResolveCancellationRequest(ctx context.Context, arg ResolveCancellationRequestParams) (CancellationRequest, error) {
	return scanCancellationRequest(q.db.QueryRow(ctx, resolveCancellationRequest,
		arg.ID,
		arg.Status,
		arg.ApprovedBy,
		arg.ResolvedAt,
	))
}

const listCancellationRequests = `-- name: ListCancellationRequests :many
SELECT ` + cancellationColumns + ` FROM cancellation_requests
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC`

func (q *Queries) ListCancellationRequests(ctx context.Context, status pgtype.Text) ([]CancellationRequest, error) {
	rows, err := q.db.Query(ctx, listCancellationRequests, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CancellationRequest{}
	for rows.Next() {
		i, err := scanCancellationRequest(rows)
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

const deleteCancellationRequestsByTab = `-- name: DeleteCancellationRequestsByTab :exec
DELETE FROM cancellation_requests WHERE tab_id = $1`

func (q *Queries) DeleteCancellationRequestsByTab(ctx context.Context, tabID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCancellationRequestsByTab, tabID)
	return err
}
