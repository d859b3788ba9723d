package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// --- Mock transaction plumbing ---

// mockTx implements pgx.Tx. Rollback without a prior Commit restores the
// snapshot taken at Begin, so tests can assert all-or-nothing behaviour.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	db        *memDB
	snap      memState
	committed bool
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed {
		m.db.restore(m.snap)
		m.committed = true
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool on top of a memDB.
type mockPool struct {
	db        *memDB
	beginErr  error
	commitErr error
	begun     int
}

func (p *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	p.begun++
	p.db.txTime = p.db.now()
	return &mockTx{db: p.db, snap: p.db.snapshot(), commitErr: p.commitErr}, nil
}
func (p *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (p *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (p *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// --- In-memory store ---

type memState struct {
	users         map[uuid.UUID]database.User
	tables        map[uuid.UUID]database.Table
	menu          map[uuid.UUID]database.MenuItem
	tabs          map[uuid.UUID]database.Tab
	parties       map[uuid.UUID]database.Party // keyed by tab id
	orders        map[uuid.UUID]database.Order
	cancellations map[uuid.UUID]database.CancellationRequest
	returns       map[uuid.UUID]database.ReturnRequest
	audits        []database.AuditLog
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memDB is a map-backed Store mimicking the SQL in internal/database,
// including the unique constraints the services rely on.
type memDB struct {
	memState
	tick time.Time
	// txTime mimics now() in Postgres: fixed for the whole transaction.
	txTime time.Time
	seq    int64
}

func newMemDB() *memDB {
	return &memDB{
		memState: memState{
			users:         map[uuid.UUID]database.User{},
			tables:        map[uuid.UUID]database.Table{},
			menu:          map[uuid.UUID]database.MenuItem{},
			tabs:          map[uuid.UUID]database.Tab{},
			parties:       map[uuid.UUID]database.Party{},
			orders:        map[uuid.UUID]database.Order{},
			cancellations: map[uuid.UUID]database.CancellationRequest{},
			returns:       map[uuid.UUID]database.ReturnRequest{},
		},
		tick: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) snapshot() memState {
	return memState{
		users:         cloneMap(m.users),
		tables:        cloneMap(m.tables),
		menu:          cloneMap(m.menu),
		tabs:          cloneMap(m.tabs),
		parties:       cloneMap(m.parties),
		orders:        cloneMap(m.orders),
		cancellations: cloneMap(m.cancellations),
		returns:       cloneMap(m.returns),
		audits:        append([]database.AuditLog(nil), m.audits...),
	}
}

func (m *memDB) restore(s memState) { m.memState = s }

// now advances a fake clock so created_at orders rows deterministically.
func (m *memDB) now() time.Time {
	m.tick = m.tick.Add(time.Second)
	return m.tick
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- seed helpers ---

func (m *memDB) addUser(role string) database.User {
	u := database.User{ID: uuid.New(), FullName: role, Email: uuid.NewString() + "@floor.test", Role: role, IsActive: true}
	m.users[u.ID] = u
	return u
}

func (m *memDB) addTable(number int32) database.Table {
	t := database.Table{ID: uuid.New(), Number: number, Capacity: 4, Status: enum.TableStatusAvailable, CreatedAt: m.now()}
	m.tables[t.ID] = t
	return t
}

func (m *memDB) addMenuItem(name, price string, available bool) database.MenuItem {
	it := database.MenuItem{ID: uuid.New(), Name: name, Category: "food", Price: decimalToNumeric(decimal.RequireFromString(price)), Available: available}
	m.menu[it.ID] = it
	return it
}

// --- TableStore ---

func (m *memDB) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
	for _, t := range m.tables {
		if t.Number == arg.Number {
			return database.Table{}, uniqueViolation("tables_number_key")
		}
	}
	t := database.Table{ID: uuid.New(), Number: arg.Number, Capacity: arg.Capacity, WaiterID: arg.WaiterID, Status: enum.TableStatusAvailable, CreatedAt: m.now()}
	m.tables[t.ID] = t
	return t, nil
}

func (m *memDB) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memDB) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.GetTable(ctx, id)
}

func (m *memDB) ListTables(ctx context.Context) ([]database.ListTablesRow, error) {
	rows := []database.ListTablesRow{}
	for _, t := range m.tables {
		n, _ := m.CountOpenTabsByTable(ctx, t.ID)
		rows = append(rows, database.ListTablesRow{Table: t, OpenTabs: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Number < rows[j].Number })
	return rows, nil
}

func (m *memDB) UpdateTableOccupancy(ctx context.Context, arg database.UpdateTableOccupancyParams) (database.Table, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.HasPaidTab = arg.HasPaidTab
	t.AllTabsPaid = arg.AllTabsPaid
	t.OccupiedSince = arg.OccupiedSince
	m.tables[t.ID] = t
	return t, nil
}

func (m *memDB) UpdateTableWaiter(ctx context.Context, arg database.UpdateTableWaiterParams) (database.Table, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.WaiterID = arg.WaiterID
	m.tables[t.ID] = t
	return t, nil
}

func (m *memDB) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- TabStore ---

func (m *memDB) CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error) {
	if (arg.Type == enum.TabTypeTable) != arg.TableID.Valid {
		return database.Tab{}, errors.New("violates tabs_table_type_check")
	}
	t := database.Tab{
		ID:                    uuid.New(),
		TableID:               arg.TableID,
		Type:                  arg.Type,
		Status:                enum.TabStatusOpen,
		Total:                 decimalToNumeric(decimal.Zero),
		ServiceCharge:         decimalToNumeric(decimal.Zero),
		FinalTotal:            decimalToNumeric(decimal.Zero),
		PaidAmount:            decimalToNumeric(decimal.Zero),
		ChangeAmount:          decimalToNumeric(decimal.Zero),
		ServiceChargeIncluded: arg.ServiceChargeIncluded,
		OpenedBy:              arg.OpenedBy,
		CustomerSeatedAt:      arg.CustomerSeatedAt,
		CreatedAt:             m.now(),
	}
	m.tabs[t.ID] = t
	return t, nil
}

func (m *memDB) GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	t, ok := m.tabs[id]
	if !ok {
		return database.Tab{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memDB) GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	return m.GetTab(ctx, id)
}

func (m *memDB) ListTabs(ctx context.Context, arg database.ListTabsParams) ([]database.Tab, error) {
	out := []database.Tab{}
	for _, t := range m.tabs {
		if arg.Status.Valid && t.Status != arg.Status.String {
			continue
		}
		if arg.TableID.Valid && t.TableID != arg.TableID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return []database.Tab{}, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memDB) ListOpenTabsByTable(ctx context.Context, tableID uuid.UUID) ([]database.Tab, error) {
	out := []database.Tab{}
	for _, t := range m.tabs {
		if t.TableID.Valid && uuid.UUID(t.TableID.Bytes) == tableID && t.Status == enum.TabStatusOpen {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) CountOpenTabsByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	open, _ := m.ListOpenTabsByTable(ctx, tableID)
	return int64(len(open)), nil
}

func (m *memDB) sum(tabID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, o := range m.orders {
		if o.TabID == tabID {
			total = total.Add(numericToDecimal(o.LineTotal))
		}
	}
	return total
}

func (m *memDB) SumTabOrders(ctx context.Context, tabID uuid.UUID) (pgtype.Numeric, error) {
	return decimalToNumeric(m.sum(tabID)), nil
}

func (m *memDB) RecomputeTabTotal(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	t, ok := m.tabs[id]
	if !ok {
		return database.Tab{}, pgx.ErrNoRows
	}
	t.Total = decimalToNumeric(m.sum(id))
	m.tabs[id] = t
	return t, nil
}

func (m *memDB) openTab(id uuid.UUID) (database.Tab, error) {
	t, ok := m.tabs[id]
	if !ok || t.Status != enum.TabStatusOpen {
		return database.Tab{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memDB) CloseTab(ctx context.Context, arg database.CloseTabParams) (database.Tab, error) {
	t, err := m.openTab(arg.ID)
	if err != nil {
		return database.Tab{}, err
	}
	t.Status = enum.TabStatusClosed
	t.Total = arg.Total
	t.ServiceChargeIncluded = arg.ServiceChargeIncluded
	t.ServiceChargePaidSeparately = arg.ServiceChargePaidSeparately
	t.ServiceCharge = arg.ServiceCharge
	t.FinalTotal = arg.FinalTotal
	t.PaymentMethod = arg.PaymentMethod
	t.PaidAmount = arg.PaidAmount
	t.ChangeAmount = arg.ChangeAmount
	t.PaidAt = arg.PaidAt
	t.ClosedAt = arg.ClosedAt
	m.tabs[t.ID] = t
	return t, nil
}

func (m *memDB) CancelTab(ctx context.Context, arg database.CancelTabParams) (database.Tab, error) {
	t, err := m.openTab(arg.ID)
	if err != nil {
		return database.Tab{}, err
	}
	t.Status = enum.TabStatusCancelled
	t.ClosedAt = arg.ClosedAt
	m.tabs[t.ID] = t
	return t, nil
}

func (m *memDB) SetTabServiceCharge(ctx context.Context, arg database.SetTabServiceChargeParams) (database.Tab, error) {
	t, err := m.openTab(arg.ID)
	if err != nil {
		return database.Tab{}, err
	}
	t.ServiceChargeIncluded = arg.ServiceChargeIncluded
	m.tabs[t.ID] = t
	return t, nil
}

func (m *memDB) SetTabBillRequested(ctx context.Context, arg database.SetTabBillRequestedParams) (database.Tab, error) {
	t, err := m.openTab(arg.ID)
	if err != nil {
		return database.Tab{}, err
	}
	t.BillRequestedAt = arg.BillRequestedAt
	m.tabs[t.ID] = t
	return t, nil
}

func (m *memDB) DeleteTab(ctx context.Context, id uuid.UUID) error {
	delete(m.tabs, id)
	return nil
}

func (m *memDB) CreateParty(ctx context.Context, arg database.CreatePartyParams) (database.Party, error) {
	if _, ok := m.parties[arg.TabID]; ok {
		return database.Party{}, uniqueViolation("parties_tab_id_key")
	}
	p := database.Party{ID: uuid.New(), TabID: arg.TabID, PersonName: arg.PersonName, SeatedAt: arg.SeatedAt}
	m.parties[arg.TabID] = p
	return p, nil
}

func (m *memDB) GetPartyByTab(ctx context.Context, tabID uuid.UUID) (database.Party, error) {
	p, ok := m.parties[tabID]
	if !ok {
		return database.Party{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memDB) DeletePartyByTab(ctx context.Context, tabID uuid.UUID) error {
	delete(m.parties, tabID)
	return nil
}

// --- OrderStore ---

func (m *memDB) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	it, ok := m.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (m *memDB) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	o := database.Order{
		ID:                    uuid.New(),
		TabID:                 arg.TabID,
		MenuItemID:            arg.MenuItemID,
		Quantity:              arg.Quantity,
		UnitPrice:             arg.UnitPrice,
		LineTotal:             arg.LineTotal,
		Status:                enum.OrderStatusPending,
		Notes:                 arg.Notes,
		ServiceChargeIncluded: arg.ServiceChargeIncluded,
		SentToKitchenAt:       arg.SentToKitchenAt,
		CreatedAt:             m.txTime,
		Seq:                   m.seq + 1,
	}
	m.seq++
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memDB) UpdateOrderQuantity(ctx context.Context, arg database.UpdateOrderQuantityParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Quantity = arg.Quantity
	o.LineTotal = arg.LineTotal
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	switch arg.Status {
	case enum.OrderStatusPreparing:
		o.StartedPreparingAt = arg.At
	case enum.OrderStatusReady:
		o.ReadyAt = arg.At
	case enum.OrderStatusDelivered:
		o.DeliveredAt = arg.At
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) UpdateOrderNotes(ctx context.Context, arg database.UpdateOrderNotesParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Notes = arg.Notes
	m.orders[o.ID] = o
	return o, nil
}

func (m *memDB) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	delete(m.orders, id)
	return nil
}

func (m *memDB) DeleteOrdersByTab(ctx context.Context, tabID uuid.UUID) error {
	for id, o := range m.orders {
		if o.TabID == tabID {
			delete(m.orders, id)
		}
	}
	return nil
}

func (m *memDB) ListTabLines(ctx context.Context, tabID uuid.UUID) ([]database.ListTabLinesRow, error) {
	out := []database.ListTabLinesRow{}
	for _, o := range m.orders {
		if o.TabID == tabID {
			out = append(out, database.ListTabLinesRow{Order: o, MenuItemName: m.menu[o.MenuItemID].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return orderBefore(out[i].Order, out[j].Order) })
	return out, nil
}

func (m *memDB) ListKitchenQueue(ctx context.Context) ([]database.ListKitchenQueueRow, error) {
	out := []database.ListKitchenQueueRow{}
	for _, o := range m.orders {
		if o.Status == enum.OrderStatusDelivered {
			continue
		}
		tab := m.tabs[o.TabID]
		row := database.ListKitchenQueueRow{Order: o, MenuItemName: m.menu[o.MenuItemID].Name, TabType: tab.Type}
		if p, ok := m.parties[o.TabID]; ok {
			row.PersonName = pgtype.Text{String: p.PersonName, Valid: true}
		}
		if tab.TableID.Valid {
			row.TableNumber = pgtype.Int4{Int32: m.tables[uuid.UUID(tab.TableID.Bytes)].Number, Valid: true}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return orderBefore(out[i].Order, out[j].Order) })
	return out, nil
}

func orderBefore(a, b database.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// --- CancellationStore ---

func (m *memDB) CreateCancellationRequest(ctx context.Context, arg database.CreateCancellationRequestParams) (database.CancellationRequest, error) {
	if _, err := m.GetPendingCancellationByTab(ctx, arg.TabID); err == nil {
		return database.CancellationRequest{}, uniqueViolation("cancellation_requests_one_pending")
	}
	cr := database.CancellationRequest{
		ID:          uuid.New(),
		TabID:       arg.TabID,
		Category:    arg.Category,
		Reason:      arg.Reason,
		RequestedBy: arg.RequestedBy,
		Status:      enum.CancellationStatusPending,
		CreatedAt:   m.now(),
	}
	m.cancellations[cr.ID] = cr
	return cr, nil
}

func (m *memDB) GetCancellationRequest(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error) {
	cr, ok := m.cancellations[id]
	if !ok {
		return database.CancellationRequest{}, pgx.ErrNoRows
	}
	return cr, nil
}

func (m *memDB) GetCancellationRequestForUpdate(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error) {
	return m.GetCancellationRequest(ctx, id)
}

func (m *memDB) GetPendingCancellationByTab(ctx context.Context, tabID uuid.UUID) (database.CancellationRequest, error) {
	for _, cr := range m.cancellations {
		if cr.TabID == tabID && cr.Status == enum.CancellationStatusPending {
			return cr, nil
		}
	}
	return database.CancellationRequest{}, pgx.ErrNoRows
}

func (m *memDB) ResolveCancellationRequest(ctx context.Context, arg database.ResolveCancellationRequestParams) (database.CancellationRequest, error) {
	cr, ok := m.cancellations[arg.ID]
	if !ok || cr.Status != enum.CancellationStatusPending {
		return database.CancellationRequest{}, pgx.ErrNoRows
	}
	cr.Status = arg.Status
	cr.ApprovedBy = arg.ApprovedBy
	cr.ResolvedAt = arg.ResolvedAt
	m.cancellations[cr.ID] = cr
	return cr, nil
}

func (m *memDB) ListCancellationRequests(ctx context.Context, status pgtype.Text) ([]database.CancellationRequest, error) {
	out := []database.CancellationRequest{}
	for _, cr := range m.cancellations {
		if status.Valid && cr.Status != status.String {
			continue
		}
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) DeleteCancellationRequestsByTab(ctx context.Context, tabID uuid.UUID) error {
	for id, cr := range m.cancellations {
		if cr.TabID == tabID {
			delete(m.cancellations, id)
		}
	}
	return nil
}

// --- ReturnStore ---

func (m *memDB) CreateReturnRequest(ctx context.Context, arg database.CreateReturnRequestParams) (database.ReturnRequest, error) {
	rr := database.ReturnRequest{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		Category:    arg.Category,
		Subcategory: arg.Subcategory,
		Description: arg.Description,
		SourceType:  arg.SourceType,
		SourceID:    arg.SourceID,
		ImageKey:    arg.ImageKey,
		RequestedBy: arg.RequestedBy,
		Status:      enum.ReturnStatusPending,
		CreatedAt:   m.now(),
	}
	m.returns[rr.ID] = rr
	return rr, nil
}

func (m *memDB) GetReturnRequest(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error) {
	rr, ok := m.returns[id]
	if !ok {
		return database.ReturnRequest{}, pgx.ErrNoRows
	}
	return rr, nil
}

func (m *memDB) GetReturnRequestForUpdate(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error) {
	return m.GetReturnRequest(ctx, id)
}

func (m *memDB) ResolveReturnRequest(ctx context.Context, arg database.ResolveReturnRequestParams) (database.ReturnRequest, error) {
	rr, ok := m.returns[arg.ID]
	if !ok {
		return database.ReturnRequest{}, pgx.ErrNoRows
	}
	rr.Status = arg.Status
	rr.ResolvedBy = arg.ResolvedBy
	rr.ResolvedAt = arg.ResolvedAt
	m.returns[rr.ID] = rr
	return rr, nil
}

func (m *memDB) SetReturnImage(ctx context.Context, arg database.SetReturnImageParams) (database.ReturnRequest, error) {
	rr, ok := m.returns[arg.ID]
	if !ok {
		return database.ReturnRequest{}, pgx.ErrNoRows
	}
	rr.ImageKey = arg.ImageKey
	m.returns[rr.ID] = rr
	return rr, nil
}

func (m *memDB) ListReturnRequests(ctx context.Context, status pgtype.Text) ([]database.ReturnRequest, error) {
	out := []database.ReturnRequest{}
	for _, rr := range m.returns {
		if status.Valid && rr.Status != status.String {
			continue
		}
		out = append(out, rr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- AuditStore ---

func (m *memDB) CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error) {
	a := database.AuditLog{
		ID:          uuid.New(),
		EntityType:  arg.EntityType,
		EntityID:    arg.EntityID,
		Action:      arg.Action,
		ActorID:     arg.ActorID,
		Description: arg.Description,
		BeforeData:  arg.BeforeData,
		AfterData:   arg.AfterData,
		CreatedAt:   m.now(),
	}
	m.audits = append(m.audits, a)
	return a, nil
}

// --- fixture ---

type fixture struct {
	db     *memDB
	pool   *mockPool
	events *recorder
	deps   Deps
}

func newFixture() *fixture {
	db := newMemDB()
	pool := &mockPool{db: db}
	rec := &recorder{}
	return &fixture{
		db:     db,
		pool:   pool,
		events: rec,
		deps: Deps{
			Pool:     pool,
			NewStore: func(database.DBTX) Store { return db },
			Events:   rec,
			Clock:    func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) },
		},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertMoney(t *testing.T, want string, got pgtype.Numeric) {
	t.Helper()
	require.Truef(t, dec(want).Equal(numericToDecimal(got)), "want %s, got %s", want, numericToDecimal(got))
}

// floor bundles every service over one fixture.
type floor struct {
	*fixture
	ledger  *LedgerService
	tabs    *TabService
	tables  *TableService
	cancels *CancellationService
}

func newFloor() *floor {
	f := newFixture()
	return &floor{
		fixture: f,
		ledger:  NewLedgerService(f.deps, ""),
		tabs:    NewTabService(f.deps, TabConfig{}),
		tables:  NewTableService(f.deps),
		cancels: NewCancellationService(f.deps, ""),
	}
}

func (fl *floor) openTab(t *testing.T, tableID uuid.UUID) database.Tab {
	t.Helper()
	tab, err := fl.tabs.Open(context.Background(), OpenTabRequest{TableID: tableID})
	require.NoError(t, err)
	return tab
}

func (fl *floor) order(t *testing.T, tabID uuid.UUID, item database.MenuItem, qty int32) database.Order {
	t.Helper()
	o, err := fl.ledger.AddOrder(context.Background(), AddOrderRequest{TabID: tabID, MenuItemID: item.ID, Quantity: qty})
	require.NoError(t, err)
	return o
}

func (fl *floor) pay(t *testing.T, tabID uuid.UUID) database.Tab {
	t.Helper()
	tab, err := fl.tabs.Close(context.Background(), CloseTabRequest{
		TabID:         tabID,
		PaymentMethod: enum.PaymentMethodPix,
		PaidAmount:    dec("1000"),
	})
	require.NoError(t, err)
	return tab
}
