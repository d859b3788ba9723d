package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createAuditLog = `-- name: CreateAuditLog :one
INSERT INTO audit_logs (entity_type, entity_id, action, actor_id, description, before_data, after_data)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, entity_type, entity_id, action, actor_id, description, before_data, after_data, created_at`

type CreateAuditLogParams struct {
	EntityType  string      `json:"entity_type"`
	EntityID    uuid.UUID   `json:"entity_id"`
	Action      string      `json:"action"`
	ActorID     pgtype.UUID `json:"actor_id"`
	Description pgtype.Text `json:"description"`
	BeforeData  []byte      `json:"before_data"`
	AfterData   []byte      `json:"after_data"`
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, createAuditLog,
		arg.EntityType,
		arg.EntityID,
		arg.Action,
		arg.ActorID,
		arg.Description,
		arg.BeforeData,
		arg.AfterData,
	)
	var i AuditLog
	err := row.Scan(
		&i.ID,
		&i.EntityType,
		&i.EntityID,
		&i.Action,
		&i.ActorID,
		&i.Description,
		&i.BeforeData,
		&i.AfterData,
		&i.CreatedAt,
	)
	return i, err
}
