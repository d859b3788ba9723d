package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createParty = `-- name: CreateParty :one
INSERT INTO parties (tab_id, person_name, seated_at)
VALUES ($1, $2, $3)
RETURNING id, tab_id, person_name, seated_at`

type CreatePartyParams struct {
	TabID      uuid.UUID `json:"tab_id"`
	PersonName string    `json:"person_name"`
	SeatedAt   time.Time `json:"seated_at"`
}

func (q *Queries) CreateParty(ctx context.Context, arg CreatePartyParams) (Party, error) {
	row := q.db.QueryRow(ctx, createParty, arg.TabID, arg.PersonName, arg.SeatedAt)
	var i Party
	err := row.Scan(&i.ID, &i.TabID, &i.PersonName, &i.SeatedAt)
	return i, err
}

const getPartyByTab = `-- name: GetPartyByTab :one
SELECT id, tab_id, person_name, seated_at FROM parties WHERE tab_id = $1`

func (q *Queries) GetPartyByTab(ctx context.Context, tabID uuid.UUID) (Party, error) {
	row := q.db.QueryRow(ctx, getPartyByTab, tabID)
	var i Party
	err := row.Scan(&i.ID, &i.TabID, &i.PersonName, &i.SeatedAt)
	return i, err
}

const deletePartyByTab = `-- name: DeletePartyByTab :exec
DELETE FROM parties WHERE tab_id = $1`

func (q *Queries) DeletePartyByTab(ctx context.Context, tabID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePartyByTab, tabID)
	return err
}
