package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is what the services need from *pgxpool.Pool: plain reads and transactions.
type Pool interface {
	database.DBTX
	TxBeginner
}

// TableStore covers table rows and the tab counts the controller needs.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTables(ctx context.Context) ([]database.ListTablesRow, error)
	UpdateTableOccupancy(ctx context.Context, arg database.UpdateTableOccupancyParams) (database.Table, error)
	UpdateTableWaiter(ctx context.Context, arg database.UpdateTableWaiterParams) (database.Table, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// TabStore covers tabs and their parties.
type TabStore interface {
	CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error)
	GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error)
	ListTabs(ctx context.Context, arg database.ListTabsParams) ([]database.Tab, error)
	ListOpenTabsByTable(ctx context.Context, tableID uuid.UUID) ([]database.Tab, error)
	CountOpenTabsByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	SumTabOrders(ctx context.Context, tabID uuid.UUID) (pgtype.Numeric, error)
	RecomputeTabTotal(ctx context.Context, id uuid.UUID) (database.Tab, error)
	CloseTab(ctx context.Context, arg database.CloseTabParams) (database.Tab, error)
	CancelTab(ctx context.Context, arg database.CancelTabParams) (database.Tab, error)
	SetTabServiceCharge(ctx context.Context, arg database.SetTabServiceChargeParams) (database.Tab, error)
	SetTabBillRequested(ctx context.Context, arg database.SetTabBillRequestedParams) (database.Tab, error)
	DeleteTab(ctx context.Context, id uuid.UUID) error
	CreateParty(ctx context.Context, arg database.CreatePartyParams) (database.Party, error)
	GetPartyByTab(ctx context.Context, tabID uuid.UUID) (database.Party, error)
	DeletePartyByTab(ctx context.Context, tabID uuid.UUID) error
}

// OrderStore covers line items and the menu lookup done at order time.
type OrderStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderQuantity(ctx context.Context, arg database.UpdateOrderQuantityParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderNotes(ctx context.Context, arg database.UpdateOrderNotesParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	DeleteOrdersByTab(ctx context.Context, tabID uuid.UUID) error
	ListTabLines(ctx context.Context, tabID uuid.UUID) ([]database.ListTabLinesRow, error)
	ListKitchenQueue(ctx context.Context) ([]database.ListKitchenQueueRow, error)
}

// CancellationStore covers cancellation requests.
type CancellationStore interface {
	CreateCancellationRequest(ctx context.Context, arg database.CreateCancellationRequestParams) (database.CancellationRequest, error)
	GetCancellationRequest(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error)
	GetCancellationRequestForUpdate(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error)
	GetPendingCancellationByTab(ctx context.Context, tabID uuid.UUID) (database.CancellationRequest, error)
	ResolveCancellationRequest(ctx context.Context, arg database.ResolveCancellationRequestParams) (database.CancellationRequest, error)
	ListCancellationRequests(ctx context.Context, status pgtype.Text) ([]database.CancellationRequest, error)
	DeleteCancellationRequestsByTab(ctx context.Context, tabID uuid.UUID) error
}

// ReturnStore covers return requests.
type ReturnStore interface {
	CreateReturnRequest(ctx context.Context, arg database.CreateReturnRequestParams) (database.ReturnRequest, error)
	GetReturnRequest(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error)
	GetReturnRequestForUpdate(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error)
	ResolveReturnRequest(ctx context.Context, arg database.ResolveReturnRequestParams) (database.ReturnRequest, error)
	SetReturnImage(ctx context.Context, arg database.SetReturnImageParams) (database.ReturnRequest, error)
	ListReturnRequests(ctx context.Context, status pgtype.Text) ([]database.ReturnRequest, error)
}

// AuditStore records before/after snapshots of administrative actions.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// Store is every DB method the floor services use.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	TableStore
	TabStore
	OrderStore
	CancellationStore
	ReturnStore
	AuditStore
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// Deps are shared by every floor service.
type Deps struct {
	Pool              Pool
	NewStore          NewStore
	Events            events.Publisher
	Logger            *zap.Logger
	Clock             func() time.Time
	ServiceChargeRate decimal.Decimal
}

type base struct {
	Deps
}

func newBase(d Deps) base {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.ServiceChargeRate.IsZero() {
		d.ServiceChargeRate = billing.DefaultServiceChargeRate
	}
	return base{Deps: d}
}

// inTx runs fn inside one transaction and commits only if fn succeeds.
func (b *base) inTx(ctx context.Context, fn func(store Store) error) error {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(b.NewStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// reader returns a store bound to the pool for read-only projections.
func (b *base) reader() Store {
	return b.NewStore(b.Pool)
}

func (b *base) now() time.Time {
	return b.Clock().UTC()
}

// publish sends events after commit. Delivery failures are logged, never
// returned: the write already happened.
func (b *base) publish(ctx context.Context, evts ...events.Event) {
	for _, evt := range evts {
		if evt.At.IsZero() {
			evt.At = b.now()
		}
		if err := b.Events.Publish(ctx, evt); err != nil {
			b.Logger.Warn("publish event",
				zap.String("type", evt.Type),
				zap.String("key", evt.Key),
				zap.Error(err),
			)
		}
	}
}

// reevaluateTable derives the table status from its open tabs. Must run in
// the caller's transaction with the table row already locked.
// paidNow reports whether the triggering action closed a tab with payment.
func reevaluateTable(ctx context.Context, store Store, table database.Table, paidNow bool) (database.Table, error) {
	open, err := store.CountOpenTabsByTable(ctx, table.ID)
	if err != nil {
		return database.Table{}, fmt.Errorf("count open tabs: %w", err)
	}

	params := database.UpdateTableOccupancyParams{
		ID:            table.ID,
		HasPaidTab:    table.HasPaidTab || paidNow,
		OccupiedSince: table.OccupiedSince,
	}
	switch {
	case open > 0:
		params.Status = enum.TableStatusOccupied
	case params.HasPaidTab:
		params.Status = enum.TableStatusPaidPendingRelease
		params.AllTabsPaid = true
	default:
		// Episode ended without payment.
		params.Status = enum.TableStatusAvailable
		params.HasPaidTab = false
		params.OccupiedSince = pgtype.Timestamptz{}
	}

	updated, err := store.UpdateTableOccupancy(ctx, params)
	if err != nil {
		return database.Table{}, fmt.Errorf("update table occupancy: %w", err)
	}
	return updated, nil
}

// audit writes one audit row in the caller's transaction.
func audit(ctx context.Context, store Store, entity string, id uuid.UUID, action string, actor uuid.UUID, desc string, before, after any) error {
	beforeData, err := snapshot(before)
	if err != nil {
		return err
	}
	afterData, err := snapshot(after)
	if err != nil {
		return err
	}
	_, err = store.CreateAuditLog(ctx, database.CreateAuditLogParams{
		EntityType:  entity,
		EntityID:    id,
		Action:      action,
		ActorID:     uuidToPg(actor),
		Description: textToPg(desc),
		BeforeData:  beforeData,
		AfterData:   afterData,
	})
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return b, nil
}

// --- pgtype helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func textToPg(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timeToPg(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
