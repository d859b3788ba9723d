package service

import (
	"context"
	"fmt"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// CreateTableRequest is staff setup input for a new table.
type CreateTableRequest struct {
	Number   int32
	Capacity int32
	WaiterID uuid.UUID
}

// StatusChange is the outcome of a manual status override.
type StatusChange struct {
	Table       database.Table
	ForceClosed []database.Tab
}

// TableBill is the combined bill of every open tab on one table.
type TableBill struct {
	Table database.Table
	Tabs  []TabBill
	billing.Total
}

// TableService drives table occupancy.
type TableService struct {
	base
}

// NewTableService creates a new TableService.
func NewTableService(d Deps) *TableService {
	return &TableService{base: newBase(d)}
}

// Create registers a table. Duplicate numbers are a Conflict.
func (s *TableService) Create(ctx context.Context, req CreateTableRequest) (database.Table, error) {
	if req.Number <= 0 {
		return database.Table{}, ErrInvalidTableNumber
	}
	if req.Capacity <= 0 {
		return database.Table{}, ErrInvalidCapacity
	}

	store := s.reader()
	if req.WaiterID != uuid.Nil {
		if _, err := store.GetUserByID(ctx, req.WaiterID); err != nil {
			return database.Table{}, lookupErr(err, ErrWaiterNotFound, "get waiter")
		}
	}

	table, err := store.CreateTable(ctx, database.CreateTableParams{
		Number:   req.Number,
		Capacity: req.Capacity,
		WaiterID: uuidToPg(req.WaiterID),
	})
	if err != nil {
		if isUniqueViolation(err, "tables_number_key") {
			return database.Table{}, ErrDuplicateTableNumber
		}
		return database.Table{}, fmt.Errorf("create table: %w", err)
	}
	s.publish(ctx, tableEvent(table))
	return table, nil
}

// Get returns a table with its open tab count.
func (s *TableService) Get(ctx context.Context, id uuid.UUID) (database.ListTablesRow, error) {
	store := s.reader()
	table, err := store.GetTable(ctx, id)
	if err != nil {
		return database.ListTablesRow{}, lookupErr(err, ErrTableNotFound, "get table")
	}
	open, err := store.CountOpenTabsByTable(ctx, id)
	if err != nil {
		return database.ListTablesRow{}, fmt.Errorf("count open tabs: %w", err)
	}
	return database.ListTablesRow{Table: table, OpenTabs: open}, nil
}

// List returns every table ordered by number.
func (s *TableService) List(ctx context.Context) ([]database.ListTablesRow, error) {
	rows, err := s.reader().ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

// Release frees a table once no tab is open on it and ends the episode.
func (s *TableService) Release(ctx context.Context, id uuid.UUID) (database.Table, error) {
	var table database.Table
	err := s.inTx(ctx, func(store Store) error {
		locked, err := store.GetTableForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, ErrTableNotFound, "get table")
		}
		open, err := store.CountOpenTabsByTable(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("count open tabs: %w", err)
		}
		if open > 0 {
			return ErrTableHasOpenTabs
		}
		table, err = store.UpdateTableOccupancy(ctx, vacate(locked.ID, enum.TableStatusAvailable))
		if err != nil {
			return fmt.Errorf("release table: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Table{}, err
	}
	s.publish(ctx, tableEvent(table))
	return table, nil
}

// SetStatus is the manual status override.
//
// With open tabs: OCCUPIED is a no-op, AVAILABLE force-closes every open tab
// first, anything else is refused. Without open tabs a table can not be
// forced OCCUPIED, and PAID_PENDING_RELEASE requires a paid tab in the
// current episode.
func (s *TableService) SetStatus(ctx context.Context, id uuid.UUID, status string, actor uuid.UUID) (StatusChange, error) {
	if !enum.IsTableStatus(status) {
		return StatusChange{}, ErrInvalidTableStatus
	}

	var change StatusChange
	err := s.inTx(ctx, func(store Store) error {
		locked, err := store.GetTableForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, ErrTableNotFound, "get table")
		}
		open, err := store.CountOpenTabsByTable(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("count open tabs: %w", err)
		}

		var params database.UpdateTableOccupancyParams
		switch {
		case open > 0 && status == enum.TableStatusOccupied:
			change.Table = locked
			return nil
		case open > 0 && status == enum.TableStatusAvailable:
			change.ForceClosed, err = s.forceCloseOpenTabs(ctx, store, locked.ID, actor)
			if err != nil {
				return err
			}
			params = vacate(locked.ID, status)
		case open > 0:
			return ErrTableHasOpenTabs
		case status == enum.TableStatusOccupied:
			return ErrTableNotOccupied
		case status == enum.TableStatusPaidPendingRelease:
			if !locked.HasPaidTab {
				return ErrTableNotPaid
			}
			params = database.UpdateTableOccupancyParams{
				ID:            locked.ID,
				Status:        status,
				HasPaidTab:    true,
				AllTabsPaid:   true,
				OccupiedSince: locked.OccupiedSince,
			}
		default:
			params = vacate(locked.ID, status)
		}

		change.Table, err = store.UpdateTableOccupancy(ctx, params)
		if err != nil {
			return fmt.Errorf("update table status: %w", err)
		}
		desc := fmt.Sprintf("status %s -> %s", locked.Status, status)
		return audit(ctx, store, "table", locked.ID, "set_status", actor, desc, locked, change.Table)
	})
	if err != nil {
		return StatusChange{}, err
	}

	evts := make([]events.Event, 0, len(change.ForceClosed)+1)
	for _, tab := range change.ForceClosed {
		evts = append(evts, events.Event{Type: events.TabClosed, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
	}
	evts = append(evts, tableEvent(change.Table))
	s.publish(ctx, evts...)
	return change, nil
}

// forceCloseOpenTabs is the compensating action behind freeing an occupied
// table: every open tab is closed at its computed totals with no payment,
// and each closure is audited. Runs under the caller's table lock.
func (s *TableService) forceCloseOpenTabs(ctx context.Context, store Store, tableID uuid.UUID, actor uuid.UUID) ([]database.Tab, error) {
	open, err := store.ListOpenTabsByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list open tabs: %w", err)
	}

	closed := make([]database.Tab, 0, len(open))
	for _, t := range open {
		locked, err := store.GetTabForUpdate(ctx, t.ID)
		if err != nil {
			return nil, lookupErr(err, ErrTabNotFound, "get tab")
		}
		locked, err = store.RecomputeTabTotal(ctx, locked.ID)
		if err != nil {
			return nil, fmt.Errorf("recompute tab total: %w", err)
		}
		b := billing.Calculate(numericToDecimal(locked.Total), s.ServiceChargeRate,
			locked.ServiceChargeIncluded, locked.ServiceChargePaidSeparately)

		tab, err := store.CloseTab(ctx, database.CloseTabParams{
			ID:                          locked.ID,
			Total:                       decimalToNumeric(b.Subtotal),
			ServiceChargeIncluded:       b.ServiceChargeIncluded,
			ServiceChargePaidSeparately: b.ServiceChargePaidSeparately,
			ServiceCharge:               decimalToNumeric(b.ChargedServiceCharge()),
			FinalTotal:                  decimalToNumeric(b.FinalTotal),
			PaidAmount:                  decimalToNumeric(decimal.Zero),
			ChangeAmount:                decimalToNumeric(decimal.Zero),
			ClosedAt:                    timeToPg(s.now()),
		})
		if err != nil {
			return nil, lookupErr(err, ErrTabNotOpen, "force close tab")
		}
		if err := audit(ctx, store, "tab", tab.ID, "force_close", actor,
			"closed without payment when the table was freed", locked, tab); err != nil {
			return nil, err
		}
		closed = append(closed, tab)
	}
	return closed, nil
}

// CalculateTable combines the bills of every open tab on the table.
func (s *TableService) CalculateTable(ctx context.Context, id uuid.UUID) (TableBill, error) {
	store := s.reader()
	table, err := store.GetTable(ctx, id)
	if err != nil {
		return TableBill{}, lookupErr(err, ErrTableNotFound, "get table")
	}
	open, err := store.ListOpenTabsByTable(ctx, id)
	if err != nil {
		return TableBill{}, fmt.Errorf("list open tabs: %w", err)
	}

	bill := TableBill{Table: table, Tabs: make([]TabBill, 0, len(open))}
	parts := make([]billing.Breakdown, 0, len(open))
	for _, tab := range open {
		tb, err := billTab(ctx, store, tab, s.ServiceChargeRate)
		if err != nil {
			return TableBill{}, err
		}
		bill.Tabs = append(bill.Tabs, tb)
		parts = append(parts, tb.Breakdown)
	}
	bill.Total = billing.Sum(parts)
	return bill, nil
}

// AssignWaiter sets or clears (uuid.Nil) the table's waiter.
func (s *TableService) AssignWaiter(ctx context.Context, id uuid.UUID, waiterID uuid.UUID) (database.Table, error) {
	var table database.Table
	err := s.inTx(ctx, func(store Store) error {
		if waiterID != uuid.Nil {
			if _, err := store.GetUserByID(ctx, waiterID); err != nil {
				return lookupErr(err, ErrWaiterNotFound, "get waiter")
			}
		}
		if _, err := store.GetTableForUpdate(ctx, id); err != nil {
			return lookupErr(err, ErrTableNotFound, "get table")
		}
		var err error
		table, err = store.UpdateTableWaiter(ctx, database.UpdateTableWaiterParams{
			ID:       id,
			WaiterID: uuidToPg(waiterID),
		})
		if err != nil {
			return fmt.Errorf("assign waiter: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Table{}, err
	}
	s.publish(ctx, tableEvent(table))
	return table, nil
}

// vacate ends the occupancy episode and clears its markers.
func vacate(id uuid.UUID, status string) database.UpdateTableOccupancyParams {
	return database.UpdateTableOccupancyParams{
		ID:            id,
		Status:        status,
		OccupiedSince: pgtype.Timestamptz{},
	}
}
