package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `o.id, o.tab_id, o.menu_item_id, o.quantity, o.unit_price, o.line_total, o.status, o.notes,
o.service_charge_included, o.sent_to_kitchen_at, o.started_preparing_at, o.ready_at, o.delivered_at,
o.created_at, o.updated_at, o.seq`

func orderFields(i *Order) []any {
	return []any{
		&i.ID,
		&i.TabID,
		&i.MenuItemID,
		&i.Quantity,
		&i.UnitPrice,
		&i.LineTotal,
		&i.Status,
		&i.Notes,
		&i.ServiceChargeIncluded,
		&i.SentToKitchenAt,
		&i.StartedPreparingAt,
		&i.ReadyAt,
		&i.DeliveredAt,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Seq,
	}
}

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(orderFields(&i)...)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders AS o (tab_id, menu_item_id, quantity, unit_price, line_total, notes,
                         service_charge_included, sent_to_kitchen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TabID                 uuid.UUID      `json:"tab_id"`
	MenuItemID            uuid.UUID      `json:"menu_item_id"`
	Quantity              int32          `json:"quantity"`
	UnitPrice             pgtype.Numeric `json:"unit_price"`
	LineTotal             pgtype.Numeric `json:"line_total"`
	Notes                 pgtype.Text    `json:"notes"`
	ServiceChargeIncluded bool           `json:"service_charge_included"`
	SentToKitchenAt       time.Time      `json:"sent_to_kitchen_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.TabID,
		arg.MenuItemID,
		arg.Quantity,
		arg.UnitPrice,
		arg.LineTotal,
		arg.Notes,
		arg.ServiceChargeIncluded,
		arg.SentToKitchenAt,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const updateOrderQuantity = `-- name: UpdateOrderQuantity :one
UPDATE orders AS o SET quantity = $2, line_total = $3, updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns

type UpdateOrderQuantityParams struct {
	ID        uuid.UUID      `json:"id"`
	Quantity  int32          `json:"quantity"`
	LineTotal pgtype.Numeric `json:"line_total"`
}

func (q *Queries) UpdateOrderQuantity(ctx context.Context, arg UpdateOrderQuantityParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderQuantity, arg.ID, arg.Quantity, arg.LineTotal))
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders AS o
SET status = $2::text,
    started_preparing_at = CASE WHEN $2::text = 'PREPARING' THEN $3 ELSE o.started_preparing_at END,
    ready_at = CASE WHEN $2::text = 'READY' THEN $3 ELSE o.ready_at END,
    delivered_at = CASE WHEN $2::text = 'DELIVERED' THEN $3 ELSE o.delivered_at END,
    updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID          `json:"id"`
	Status string             `json:"status"`
	At     pgtype.Timestamptz `json:"at"`
}

// UpdateOrderStatus stamps the timestamp matching the new status.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.At))
}

const updateOrderNotes = `-- name: UpdateOrderNotes :one
UPDATE orders AS o SET notes = $2, updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns

type UpdateOrderNotesParams struct {
	ID    uuid.UUID   `json:"id"`
	Notes pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateOrderNotes(ctx context.Context, arg UpdateOrderNotesParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderNotes, arg.ID, arg.Notes))
}

const deleteOrder = `-- name: DeleteOrder :exec
DELETE FROM orders WHERE id = $1`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrder, id)
	return err
}

const deleteOrdersByTab = `-- name: DeleteOrdersByTab :exec
DELETE FROM orders WHERE tab_id = $1`

// DeleteOrdersByTab also removes the orders' return requests (ON DELETE CASCADE).
func (q *Queries) DeleteOrdersByTab(ctx context.Context, tabID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrdersByTab, tabID)
	return err
}

const listTabLines = `-- name: ListTabLines :many
SELECT ` + orderColumns + `, m.name AS menu_item_name
FROM orders o
JOIN menu_items m ON m.id = o.menu_item_id
WHERE o.tab_id = $1
ORDER BY o.created_at, o.seq`

type ListTabLinesRow struct {
	Order
	MenuItemName string `json:"menu_item_name"`
}

func (q *Queries) ListTabLines(ctx context.Context, tabID uuid.UUID) ([]ListTabLinesRow, error) {
	rows, err := q.db.Query(ctx, listTabLines, tabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListTabLinesRow{}
	for rows.Next() {
		var i ListTabLinesRow
		if err := rows.Scan(append(orderFields(&i.Order), &i.MenuItemName)...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listKitchenQueue = `-- name: ListKitchenQueue :many
SELECT ` + orderColumns + `,
       m.name AS menu_item_name,
       t.type AS tab_type,
       p.person_name,
       tb.number AS table_number
FROM orders o
JOIN menu_items m ON m.id = o.menu_item_id
JOIN tabs t ON t.id = o.tab_id
LEFT JOIN parties p ON p.tab_id = t.id
LEFT JOIN tables tb ON tb.id = t.table_id
WHERE o.status IN ('PENDING', 'PREPARING', 'READY')
ORDER BY o.created_at, o.seq`

type ListKitchenQueueRow struct {
	Order
	MenuItemName string      `json:"menu_item_name"`
	TabType      string      `json:"tab_type"`
	PersonName   pgtype.Text `json:"person_name"`
	TableNumber  pgtype.Int4 `json:"table_number"`
}

// ListKitchenQueue returns undelivered orders oldest first.
func (q *Queries) ListKitchenQueue(ctx context.Context) ([]ListKitchenQueueRow, error) {
	rows, err := q.db.Query(ctx, listKitchenQueue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListKitchenQueueRow{}
	for rows.Next() {
		var i ListKitchenQueueRow
		dest := append(orderFields(&i.Order), &i.MenuItemName, &i.TabType, &i.PersonName, &i.TableNumber)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
