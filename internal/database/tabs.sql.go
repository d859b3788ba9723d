package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tabColumns = `id, table_id, type, status, total, service_charge_included, service_charge_paid_separately,
service_charge, final_total, payment_method, paid_amount, change_amount, opened_by,
customer_seated_at, bill_requested_at, paid_at, closed_at, created_at, updated_at`

func scanTab(row interface{ Scan(...any) error }) (Tab, error) {
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Type,
		&i.Status,
		&i.Total,
		&i.ServiceChargeIncluded,
		&i.ServiceChargePaidSeparately,
		&i.ServiceCharge,
		&i.FinalTotal,
		&i.PaymentMethod,
		&i.PaidAmount,
		&i.ChangeAmount,
		&i.OpenedBy,
		&i.CustomerSeatedAt,
		&i.BillRequestedAt,
		&i.PaidAt,
		&i.ClosedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectTabs(rows pgx.Rows, err error) ([]Tab, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Tab{}
	for rows.Next() {
		i, err := scanTab(rows)
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

const createTab = `-- name: CreateTab :one
INSERT INTO tabs (table_id, type, service_charge_included, opened_by, customer_seated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + tabColumns

type CreateTabParams struct {
	TableID               pgtype.UUID        `json:"table_id"`
	Type                  string             `json:"type"`
	ServiceChargeIncluded bool               `json:"service_charge_included"`
	OpenedBy              pgtype.UUID        `json:"opened_by"`
	CustomerSeatedAt      pgtype.Timestamptz `json:"customer_seated_at"`
}

func (q *Queries) CreateTab(ctx context.Context, arg CreateTabParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, createTab,
		arg.TableID,
		arg.Type,
		arg.ServiceChargeIncluded,
		arg.OpenedBy,
		arg.CustomerSeatedAt,
	))
}

const getTab = `-- name: GetTab :one
SELECT ` + tabColumns + ` FROM tabs WHERE id = $1`

func (q *Queries) GetTab(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, getTab, id))
}

const getTabForUpdate = `-- name: GetTabForUpdate :one
SELECT ` + tabColumns + ` FROM tabs WHERE id = $1
FOR NO KEY UPDATE`

// GetTabForUpdate locks the tab row for the rest of the transaction.
// FOR NO KEY UPDATE still lets orders and parties reference the row.
func (q *Queries) GetTabForUpdate(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, getTabForUpdate, id))
}

const listTabs = `-- name: ListTabs :many
SELECT ` + tabColumns + ` FROM tabs
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR table_id = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListTabsParams struct {
	Status  pgtype.Text `json:"status"`
	TableID pgtype.UUID `json:"table_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListTabs(ctx context.Context, arg ListTabsParams) ([]Tab, error) {
	return collectTabs(q.db.Query(ctx, listTabs, arg.Status, arg.TableID, arg.Limit, arg.Offset))
}

const listOpenTabsByTable = `-- name: ListOpenTabsByTable :many
SELECT ` + tabColumns + ` FROM tabs
WHERE table_id = $1 AND status = 'OPEN'
ORDER BY created_at`

func (q *Queries) ListOpenTabsByTable(ctx context.Context, tableID uuid.UUID) ([]Tab, error) {
	return collectTabs(q.db.Query(ctx, listOpenTabsByTable, tableID))
}

const countOpenTabsByTable = `-- name: CountOpenTabsByTable :one
SELECT COUNT(*) FROM tabs WHERE table_id = $1 AND status = 'OPEN'`

func (q *Queries) CountOpenTabsByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOpenTabsByTable, tableID).Scan(&count)
	return count, err
}

const sumTabOrders = `-- name: SumTabOrders :one
SELECT COALESCE(SUM(line_total), 0)::numeric(12,2) FROM orders WHERE tab_id = $1`

func (q *Queries) SumTabOrders(ctx context.Context, tabID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, sumTabOrders, tabID).Scan(&sum)
	return sum, err
}

const recomputeTabTotal = `-- name: RecomputeTabTotal :one
UPDATE tabs
SET total = (SELECT COALESCE(SUM(line_total), 0) FROM orders WHERE orders.tab_id = tabs.id),
    updated_at = now()
WHERE id = $1
RETURNING ` + tabColumns

// RecomputeTabTotal rebuilds the stored total from the full line-item set.
func (q *Queries) RecomputeTabTotal(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, recomputeTabTotal, id))
}

const closeTab = `-- name: CloseTab :one
UPDATE tabs
SET status = 'CLOSED',
    total = $2,
    service_charge_included = $3,
    service_charge_paid_separately = $4,
    service_charge = $5,
    final_total = $6,
    payment_method = $7,
    paid_amount = $8,
    change_amount = $9,
    paid_at = $10,
    closed_at = $11,
    updated_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

type CloseTabParams struct {
	ID                          uuid.UUID          `json:"id"`
	Total                       pgtype.Numeric     `json:"total"`
	ServiceChargeIncluded       bool               `json:"service_charge_included"`
	ServiceChargePaidSeparately bool               `json:"service_charge_paid_separately"`
	ServiceCharge               pgtype.Numeric     `json:"service_charge"`
	FinalTotal                  pgtype.Numeric     `json:"final_total"`
	PaymentMethod               pgtype.Text        `json:"payment_method"`
	PaidAmount                  pgtype.Numeric     `json:"paid_amount"`
	ChangeAmount                pgtype.Numeric     `json:"change_amount"`
	PaidAt                      pgtype.Timestamptz `json:"paid_at"`
	ClosedAt                    pgtype.Timestamptz `json:"closed_at"`
}

// CloseTab returns pgx.ErrNoRows when the tab is no longer OPEN.
func (q *Queries) CloseTab(ctx context.Context, arg CloseTabParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, closeTab,
		arg.ID,
		arg.Total,
		arg.ServiceChargeIncluded,
		arg.ServiceChargePaidSeparately,
		arg.ServiceCharge,
		arg.FinalTotal,
		arg.PaymentMethod,
		arg.PaidAmount,
		arg.ChangeAmount,
		arg.PaidAt,
		arg.ClosedAt,
	))
}

const cancelTab = `-- name: CancelTab :one
UPDATE tabs SET status = 'CANCELLED', closed_at = $2, updated_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

type CancelTabParams struct {
	ID       uuid.UUID          `json:"id"`
	ClosedAt pgtype.Timestamptz `json:"closed_at"`
}

func (q *Queries) CancelTab(ctx context.Context, arg CancelTabParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, cancelTab, arg.ID, arg.ClosedAt))
}

const setTabServiceCharge = `-- name: SetTabServiceCharge :one
UPDATE tabs SET service_charge_included = $2, updated_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

type SetTabServiceChargeParams struct {
	ID                    uuid.UUID `json:"id"`
	ServiceChargeIncluded bool      `json:"service_charge_included"`
}

func (q *Queries) SetTabServiceCharge(ctx context.Context, arg SetTabServiceChargeParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, setTabServiceCharge, arg.ID, arg.ServiceChargeIncluded))
}

const setTabBillRequested = `-- name: SetTabBillRequested :one
UPDATE tabs SET bill_requested_at = $2, updated_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

type SetTabBillRequestedParams struct {
	ID              uuid.UUID          `json:"id"`
	BillRequestedAt pgtype.Timestamptz `json:"bill_requested_at"`
}

func (q *Queries) SetTabBillRequested(ctx context.Context, arg SetTabBillRequestedParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, setTabBillRequested, arg.ID, arg.BillRequestedAt))
}

const deleteTab = `-- name: DeleteTab :exec
DELETE FROM tabs WHERE id = $1`

func (q *Queries) DeleteTab(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTab, id)
	return err
}
