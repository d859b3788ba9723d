package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/handler"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mock TableServicer ---

type mockTableService struct {
	createFn       func(ctx context.Context, req service.CreateTableRequest) (database.Table, error)
	getFn          func(ctx context.Context, id uuid.UUID) (database.ListTablesRow, error)
	listFn         func(ctx context.Context) ([]database.ListTablesRow, error)
	releaseFn      func(ctx context.Context, id uuid.UUID) (database.Table, error)
	setStatusFn    func(ctx context.Context, id uuid.UUID, status string, actor uuid.UUID) (service.StatusChange, error)
	calculateFn    func(ctx context.Context, id uuid.UUID) (service.TableBill, error)
	assignWaiterFn func(ctx context.Context, id uuid.UUID, waiterID uuid.UUID) (database.Table, error)
}

func (m *mockTableService) Create(ctx context.Context, req service.CreateTableRequest) (database.Table, error) {
	return m.createFn(ctx, req)
}

func (m *mockTableService) Get(ctx context.Context, id uuid.UUID) (database.ListTablesRow, error) {
	return m.getFn(ctx, id)
}

func (m *mockTableService) List(ctx context.Context) ([]database.ListTablesRow, error) {
	return m.listFn(ctx)
}

func (m *mockTableService) Release(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.releaseFn(ctx, id)
}

func (m *mockTableService) SetStatus(ctx context.Context, id uuid.UUID, status string, actor uuid.UUID) (service.StatusChange, error) {
	return m.setStatusFn(ctx, id, status, actor)
}

func (m *mockTableService) CalculateTable(ctx context.Context, id uuid.UUID) (service.TableBill, error) {
	return m.calculateFn(ctx, id)
}

func (m *mockTableService) AssignWaiter(ctx context.Context, id uuid.UUID, waiterID uuid.UUID) (database.Table, error) {
	return m.assignWaiterFn(ctx, id, waiterID)
}

type stubQR struct {
	gotNumber int32
	gotSize   int
}

func (s *stubQR) Table(_ uuid.UUID, number int32, size int) ([]byte, error) {
	s.gotNumber, s.gotSize = number, size
	return []byte("\x89PNG fake"), nil
}

func tableRouter(svc handler.TableServicer, qr handler.TableQR, role string, actor uuid.UUID) chi.Router {
	h := handler.NewTableHandler(svc, qr, zap.NewNop())
	r := asStaff(role, actor)
	r.Route("/tables", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestTableList(t *testing.T) {
	tableID := uuid.New()
	svc := &mockTableService{
		listFn: func(context.Context) ([]database.ListTablesRow, error) {
			return []database.ListTablesRow{{
				Table:    database.Table{ID: tableID, Number: 7, Capacity: 4, Status: enum.TableStatusOccupied},
				OpenTabs: 2,
			}}, nil
		},
	}
	rr := get(tableRouter(svc, nil, enum.UserRoleStandard, uuid.New()), "/tables")
	wantStatus(t, rr, http.StatusOK)

	var resp []map[string]interface{}
	decodeInto(t, rr, &resp)
	if len(resp) != 1 {
		t.Fatalf("tables: got %d, want 1", len(resp))
	}
	if resp[0]["open_tabs"].(float64) != 2 {
		t.Errorf("open_tabs: got %v, want 2", resp[0]["open_tabs"])
	}
	if resp[0]["status"] != enum.TableStatusOccupied {
		t.Errorf("status: got %v", resp[0]["status"])
	}
}

func TestTableCreate(t *testing.T) {
	var got service.CreateTableRequest
	svc := &mockTableService{
		createFn: func(_ context.Context, req service.CreateTableRequest) (database.Table, error) {
			got = req
			return database.Table{ID: uuid.New(), Number: req.Number, Capacity: req.Capacity, Status: enum.TableStatusAvailable}, nil
		},
	}
	waiter := uuid.New()
	r := tableRouter(svc, nil, enum.UserRoleAdmin, uuid.New())

	rr := postJSON(t, r, "/tables", map[string]interface{}{"number": 3, "capacity": 2, "waiter_id": waiter.String()})
	wantStatus(t, rr, http.StatusCreated)
	if got.Number != 3 || got.Capacity != 2 || got.WaiterID != waiter {
		t.Errorf("request: got %+v", got)
	}

	rr = postJSON(t, r, "/tables", map[string]interface{}{"number": 3, "capacity": 2, "waiter_id": "nope"})
	wantStatus(t, rr, http.StatusBadRequest)
}

func TestTableCreate_RequiresAdmin(t *testing.T) {
	svc := &mockTableService{}
	rr := postJSON(t, tableRouter(svc, nil, enum.UserRoleWaiter, uuid.New()), "/tables", map[string]interface{}{"number": 1, "capacity": 2})
	wantStatus(t, rr, http.StatusForbidden)
}

func TestTableServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrTableNotFound, http.StatusNotFound},
		{"invalid state", service.ErrTableHasOpenTabs, http.StatusConflict},
		{"conflict", service.ErrDuplicateTableNumber, http.StatusConflict},
		{"validation", service.ErrInvalidTableStatus, http.StatusBadRequest},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTableService{
				releaseFn: func(context.Context, uuid.UUID) (database.Table, error) {
					return database.Table{}, tt.err
				},
			}
			rr := postJSON(t, tableRouter(svc, nil, enum.UserRoleWaiter, uuid.New()), "/tables/"+uuid.NewString()+"/release", nil)
			wantStatus(t, rr, tt.want)
			if tt.want == http.StatusInternalServerError {
				if msg := decodeResponse(t, rr)["error"]; msg != "internal server error" {
					t.Errorf("500 must not leak the cause, got %v", msg)
				}
			}
		})
	}
}

func TestTableInvalidID(t *testing.T) {
	rr := get(tableRouter(&mockTableService{}, nil, enum.UserRoleWaiter, uuid.New()), "/tables/not-a-uuid")
	wantStatus(t, rr, http.StatusBadRequest)
}

func TestTableSetStatus_PassesActorAndReportsForceClosed(t *testing.T) {
	actor := uuid.New()
	tableID := uuid.New()
	closedTab := database.Tab{ID: uuid.New(), Status: enum.TabStatusClosed, Total: numeric(t, "40")}
	svc := &mockTableService{
		setStatusFn: func(_ context.Context, id uuid.UUID, status string, gotActor uuid.UUID) (service.StatusChange, error) {
			if id != tableID || status != enum.TableStatusAvailable || gotActor != actor {
				t.Errorf("args: id=%s status=%s actor=%s", id, status, gotActor)
			}
			return service.StatusChange{
				Table:       database.Table{ID: tableID, Status: enum.TableStatusAvailable},
				ForceClosed: []database.Tab{closedTab},
			}, nil
		},
	}
	r := tableRouter(svc, nil, enum.UserRoleWaiter, actor)

	rr := sendJSON(t, r, http.MethodPatch, "/tables/"+tableID.String()+"/status", map[string]string{"status": enum.TableStatusAvailable})
	wantStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	closed := resp["force_closed"].([]interface{})
	if len(closed) != 1 {
		t.Fatalf("force_closed: got %d, want 1", len(closed))
	}
	if total := closed[0].(map[string]interface{})["total"]; total != "40.00" {
		t.Errorf("total: got %v, want 40.00", total)
	}
}

func TestTableBill(t *testing.T) {
	a := billing.Calculate(decimal.RequireFromString("100"), billing.DefaultServiceChargeRate, true, false)
	b := billing.Calculate(decimal.RequireFromString("50"), billing.DefaultServiceChargeRate, false, false)
	svc := &mockTableService{
		calculateFn: func(_ context.Context, id uuid.UUID) (service.TableBill, error) {
			return service.TableBill{
				Table: database.Table{ID: id, Number: 4},
				Tabs: []service.TabBill{
					{Tab: database.Tab{ID: uuid.New()}, Breakdown: a},
					{Tab: database.Tab{ID: uuid.New()}, Breakdown: b},
				},
				Total: billing.Sum([]billing.Breakdown{a, b}),
			}, nil
		},
	}
	rr := get(tableRouter(svc, nil, enum.UserRoleWaiter, uuid.New()), "/tables/"+uuid.NewString()+"/bill")
	wantStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	if resp["subtotal"] != "150.00" || resp["service_charge"] != "10.00" || resp["final_total"] != "160.00" {
		t.Errorf("totals: got %v / %v / %v", resp["subtotal"], resp["service_charge"], resp["final_total"])
	}
	if n := len(resp["tabs"].([]interface{})); n != 2 {
		t.Errorf("tabs: got %d, want 2", n)
	}
}

func TestTableQRCode(t *testing.T) {
	svc := &mockTableService{
		getFn: func(_ context.Context, id uuid.UUID) (database.ListTablesRow, error) {
			return database.ListTablesRow{Table: database.Table{ID: id, Number: 9}}, nil
		},
	}
	qr := &stubQR{}
	rr := get(tableRouter(svc, qr, enum.UserRoleWaiter, uuid.New()), "/tables/"+uuid.NewString()+"/qr.png?size=5000")
	wantStatus(t, rr, http.StatusOK)

	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %s", ct)
	}
	if qr.gotNumber != 9 {
		t.Errorf("number: got %d, want 9", qr.gotNumber)
	}
	if qr.gotSize != 1024 {
		t.Errorf("size is capped: got %d, want 1024", qr.gotSize)
	}
}

func TestTableAssignWaiter_EmptyClears(t *testing.T) {
	got := uuid.New()
	svc := &mockTableService{
		assignWaiterFn: func(_ context.Context, id uuid.UUID, waiterID uuid.UUID) (database.Table, error) {
			got = waiterID
			return database.Table{ID: id}, nil
		},
	}
	rr := sendJSON(t, tableRouter(svc, nil, enum.UserRoleAdmin, uuid.New()), http.MethodPatch, "/tables/"+uuid.NewString()+"/waiter", map[string]string{"waiter_id": ""})
	wantStatus(t, rr, http.StatusOK)
	if got != uuid.Nil {
		t.Errorf("waiter: got %s, want nil", got)
	}
}
