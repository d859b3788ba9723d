package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TabConfig holds tab defaults.
type TabConfig struct {
	// TableServiceChargeDefault pre-selects the service charge on TABLE tabs.
	TableServiceChargeDefault bool
}

// OpenTabRequest opens a TABLE tab when TableID is set, a COUNTER tab otherwise.
type OpenTabRequest struct {
	TableID    uuid.UUID
	PersonName string
	OpenedBy   uuid.UUID
}

// CloseTabRequest settles a tab. A nil ServiceChargeIncluded keeps the
// tab's current flag.
type CloseTabRequest struct {
	TabID                       uuid.UUID
	PaymentMethod               string
	PaidAmount                  decimal.Decimal
	ServiceChargeIncluded       *bool
	ServiceChargePaidSeparately bool
}

// ListTabsFilter narrows tab listings. Zero values mean "any".
type ListTabsFilter struct {
	Status  string
	TableID uuid.UUID
	Limit   int32
	Offset  int32
}

// TabBill is the read-only bill projection of one tab.
type TabBill struct {
	Tab database.Tab
	billing.Breakdown
}

// TabDetail is a tab with its party and line items.
type TabDetail struct {
	Tab   database.Tab
	Party *database.Party
	Lines []database.ListTabLinesRow
}

// TabService owns the financial lifecycle of tabs.
type TabService struct {
	base
	cfg TabConfig
}

// NewTabService creates a new TabService.
func NewTabService(d Deps, cfg TabConfig) *TabService {
	return &TabService{base: newBase(d), cfg: cfg}
}

// Open starts a tab. A table-bound tab occupies its table in the same
// transaction.
func (s *TabService) Open(ctx context.Context, req OpenTabRequest) (database.Tab, error) {
	var tab database.Tab
	var table database.Table
	tableBound := req.TableID != uuid.Nil

	err := s.inTx(ctx, func(store Store) error {
		now := s.now()
		params := database.CreateTabParams{
			Type:     enum.TabTypeCounter,
			OpenedBy: uuidToPg(req.OpenedBy),
		}
		if req.PersonName != "" {
			params.CustomerSeatedAt = timeToPg(now)
		}

		if tableBound {
			locked, err := store.GetTableForUpdate(ctx, req.TableID)
			if err != nil {
				return lookupErr(err, ErrTableNotFound, "get table")
			}
			params.TableID = uuidToPg(locked.ID)
			params.Type = enum.TabTypeTable
			params.ServiceChargeIncluded = s.cfg.TableServiceChargeDefault

			table, err = store.UpdateTableOccupancy(ctx, occupy(locked, now))
			if err != nil {
				return fmt.Errorf("occupy table: %w", err)
			}
		}

		var err error
		tab, err = store.CreateTab(ctx, params)
		if err != nil {
			return fmt.Errorf("create tab: %w", err)
		}

		if req.PersonName != "" {
			if _, err := store.CreateParty(ctx, database.CreatePartyParams{
				TabID:      tab.ID,
				PersonName: req.PersonName,
				SeatedAt:   now,
			}); err != nil {
				return fmt.Errorf("create party: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return database.Tab{}, err
	}

	evts := []events.Event{{Type: events.TabOpened, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab}}
	if tableBound {
		evts = append(evts, tableEvent(table))
	}
	s.publish(ctx, evts...)
	return tab, nil
}

// occupy returns the occupancy update for opening a tab on a locked table.
// Opening on an AVAILABLE table starts a new episode; anything else keeps
// the current one, so a paid sibling still counts towards release.
func occupy(t database.Table, now time.Time) database.UpdateTableOccupancyParams {
	p := database.UpdateTableOccupancyParams{
		ID:            t.ID,
		Status:        enum.TableStatusOccupied,
		HasPaidTab:    t.HasPaidTab,
		OccupiedSince: t.OccupiedSince,
	}
	if t.Status == enum.TableStatusAvailable {
		p.HasPaidTab = false
		p.OccupiedSince = timeToPg(now)
	}
	if !p.OccupiedSince.Valid {
		p.OccupiedSince = timeToPg(now)
	}
	return p
}

// Get returns a tab with its party and line items.
func (s *TabService) Get(ctx context.Context, id uuid.UUID) (TabDetail, error) {
	store := s.reader()
	tab, err := store.GetTab(ctx, id)
	if err != nil {
		return TabDetail{}, lookupErr(err, ErrTabNotFound, "get tab")
	}
	detail := TabDetail{Tab: tab}

	party, err := store.GetPartyByTab(ctx, id)
	switch {
	case err == nil:
		detail.Party = &party
	case !errors.Is(err, pgx.ErrNoRows):
		return TabDetail{}, fmt.Errorf("get party: %w", err)
	}

	detail.Lines, err = store.ListTabLines(ctx, id)
	if err != nil {
		return TabDetail{}, fmt.Errorf("list tab lines: %w", err)
	}
	return detail, nil
}

// List returns tabs newest first.
func (s *TabService) List(ctx context.Context, f ListTabsFilter) ([]database.Tab, error) {
	params := database.ListTabsParams{
		Status: textToPg(f.Status),
		Limit:  f.Limit,
		Offset: f.Offset,
	}
	if f.Status != "" && !isTabStatus(f.Status) {
		return nil, newError(ErrValidation, "invalid tab status")
	}
	if f.TableID != uuid.Nil {
		params.TableID = uuidToPg(f.TableID)
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}
	tabs, err := s.reader().ListTabs(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	return tabs, nil
}

// Calculate projects the bill from the tab's current line items and flags.
// Safe on tabs in any status; never writes.
func (s *TabService) Calculate(ctx context.Context, id uuid.UUID) (TabBill, error) {
	store := s.reader()
	tab, err := store.GetTab(ctx, id)
	if err != nil {
		return TabBill{}, lookupErr(err, ErrTabNotFound, "get tab")
	}
	return billTab(ctx, store, tab, s.ServiceChargeRate)
}

func billTab(ctx context.Context, store Store, tab database.Tab, rate decimal.Decimal) (TabBill, error) {
	sum, err := store.SumTabOrders(ctx, tab.ID)
	if err != nil {
		return TabBill{}, fmt.Errorf("sum tab orders: %w", err)
	}
	return TabBill{
		Tab:       tab,
		Breakdown: billing.Calculate(numericToDecimal(sum), rate, tab.ServiceChargeIncluded, tab.ServiceChargePaidSeparately),
	}, nil
}

// Close settles an open tab and re-evaluates its table.
func (s *TabService) Close(ctx context.Context, req CloseTabRequest) (database.Tab, error) {
	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return database.Tab{}, ErrInvalidPaymentMethod
	}
	if req.PaidAmount.IsNegative() {
		return database.Tab{}, ErrInvalidPaidAmount
	}

	var tab database.Tab
	var table *database.Table
	err := s.inTx(ctx, func(store Store) error {
		lockedTable, locked, err := lockTab(ctx, store, req.TabID)
		if err != nil {
			return err
		}
		if locked.Status != enum.TabStatusOpen {
			return ErrTabNotOpen
		}

		locked, err = store.RecomputeTabTotal(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("recompute tab total: %w", err)
		}
		included := locked.ServiceChargeIncluded
		if req.ServiceChargeIncluded != nil {
			included = *req.ServiceChargeIncluded
		}
		// A short cash payment still closes; change floors at zero.
		b := billing.Calculate(numericToDecimal(locked.Total), s.ServiceChargeRate,
			included, req.ServiceChargePaidSeparately)

		now := timeToPg(s.now())
		tab, err = store.CloseTab(ctx, database.CloseTabParams{
			ID:                          locked.ID,
			Total:                       decimalToNumeric(b.Subtotal),
			ServiceChargeIncluded:       b.ServiceChargeIncluded,
			ServiceChargePaidSeparately: b.ServiceChargePaidSeparately,
			ServiceCharge:               decimalToNumeric(b.ChargedServiceCharge()),
			FinalTotal:                  decimalToNumeric(b.FinalTotal),
			PaymentMethod:               textToPg(req.PaymentMethod),
			PaidAmount:                  decimalToNumeric(req.PaidAmount),
			ChangeAmount:                decimalToNumeric(billing.Change(req.PaymentMethod, req.PaidAmount, b.FinalTotal)),
			PaidAt:                      now,
			ClosedAt:                    now,
		})
		if err != nil {
			return lookupErr(err, ErrTabNotOpen, "close tab")
		}

		if lockedTable != nil {
			updated, err := reevaluateTable(ctx, store, *lockedTable, true)
			if err != nil {
				return err
			}
			table = &updated
		}
		return nil
	})
	if err != nil {
		return database.Tab{}, err
	}

	evts := []events.Event{{Type: events.TabClosed, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab}}
	if table != nil {
		evts = append(evts, tableEvent(*table))
	}
	s.publish(ctx, evts...)
	return tab, nil
}

// ToggleServiceCharge sets the service-charge flag of an open tab.
func (s *TabService) ToggleServiceCharge(ctx context.Context, id uuid.UUID, included bool) (database.Tab, error) {
	tab, err := s.mutateOpenTab(ctx, id, func(store Store, tab database.Tab) (database.Tab, error) {
		return store.SetTabServiceCharge(ctx, database.SetTabServiceChargeParams{
			ID:                    tab.ID,
			ServiceChargeIncluded: included,
		})
	})
	if err != nil {
		return database.Tab{}, err
	}
	s.publish(ctx, events.Event{Type: events.TabUpdated, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
	return tab, nil
}

// RequestBill stamps bill_requested_at. Advisory only.
func (s *TabService) RequestBill(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	tab, err := s.mutateOpenTab(ctx, id, func(store Store, tab database.Tab) (database.Tab, error) {
		return store.SetTabBillRequested(ctx, database.SetTabBillRequestedParams{
			ID:              tab.ID,
			BillRequestedAt: timeToPg(s.now()),
		})
	})
	if err != nil {
		return database.Tab{}, err
	}
	s.publish(ctx, events.Event{Type: events.TabUpdated, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
	return tab, nil
}

func (s *TabService) mutateOpenTab(ctx context.Context, id uuid.UUID, fn func(Store, database.Tab) (database.Tab, error)) (database.Tab, error) {
	var tab database.Tab
	err := s.inTx(ctx, func(store Store) error {
		locked, err := store.GetTabForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, ErrTabNotFound, "get tab")
		}
		if locked.Status != enum.TabStatusOpen {
			return ErrTabNotOpen
		}
		tab, err = fn(store, locked)
		if err != nil {
			return lookupErr(err, ErrTabNotOpen, "update tab")
		}
		return nil
	})
	return tab, err
}

// Delete removes a tab with its orders, party and cancellation requests.
// Deleting an open tab re-evaluates its table.
func (s *TabService) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	var tab database.Tab
	var table *database.Table
	err := s.inTx(ctx, func(store Store) error {
		lockedTable, locked, err := lockTab(ctx, store, id)
		if err != nil {
			return err
		}
		tab = locked

		if err := store.DeleteCancellationRequestsByTab(ctx, tab.ID); err != nil {
			return fmt.Errorf("delete cancellation requests: %w", err)
		}
		if err := store.DeleteOrdersByTab(ctx, tab.ID); err != nil {
			return fmt.Errorf("delete orders: %w", err)
		}
		if err := store.DeletePartyByTab(ctx, tab.ID); err != nil {
			return fmt.Errorf("delete party: %w", err)
		}
		if err := store.DeleteTab(ctx, tab.ID); err != nil {
			return fmt.Errorf("delete tab: %w", err)
		}
		if err := audit(ctx, store, "tab", tab.ID, "delete", actor, "tab deleted", tab, nil); err != nil {
			return err
		}

		if lockedTable != nil && tab.Status == enum.TabStatusOpen {
			updated, err := reevaluateTable(ctx, store, *lockedTable, false)
			if err != nil {
				return err
			}
			table = &updated
		}
		return nil
	})
	if err != nil {
		return err
	}

	evts := []events.Event{{Type: events.TabDeleted, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab}}
	if table != nil {
		evts = append(evts, tableEvent(*table))
	}
	s.publish(ctx, evts...)
	return nil
}

// lockTab locks a tab and, when it is table-bound, its table first. The
// table reference never changes, so reading it unlocked is safe.
func lockTab(ctx context.Context, store Store, id uuid.UUID) (*database.Table, database.Tab, error) {
	peek, err := store.GetTab(ctx, id)
	if err != nil {
		return nil, database.Tab{}, lookupErr(err, ErrTabNotFound, "get tab")
	}

	var table *database.Table
	if peek.TableID.Valid {
		t, err := store.GetTableForUpdate(ctx, uuid.UUID(peek.TableID.Bytes))
		if err != nil {
			return nil, database.Tab{}, lookupErr(err, ErrTableNotFound, "get table")
		}
		table = &t
	}

	tab, err := store.GetTabForUpdate(ctx, id)
	if err != nil {
		return nil, database.Tab{}, lookupErr(err, ErrTabNotFound, "get tab")
	}
	return table, tab, nil
}

func tableEvent(t database.Table) events.Event {
	return events.Event{Type: events.TableUpdated, Room: events.RoomFloor, Key: t.ID.String(), Payload: t}
}

func isTabStatus(s string) bool {
	switch s {
	case enum.TabStatusOpen, enum.TabStatusClosed, enum.TabStatusCancelled:
		return true
	}
	return false
}
