package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/middleware"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	Create(ctx context.Context, req service.CreateTableRequest) (database.Table, error)
	Get(ctx context.Context, id uuid.UUID) (database.ListTablesRow, error)
	List(ctx context.Context) ([]database.ListTablesRow, error)
	Release(ctx context.Context, id uuid.UUID) (database.Table, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, actor uuid.UUID) (service.StatusChange, error)
	CalculateTable(ctx context.Context, id uuid.UUID) (service.TableBill, error)
	AssignWaiter(ctx context.Context, id uuid.UUID, waiterID uuid.UUID) (database.Table, error)
}

// TableQR renders the QR code printed on a table. Satisfied by qrcode.Generator.
type TableQR interface {
	Table(tableID uuid.UUID, number int32, size int) ([]byte, error)
}

// TableHandler handles table occupancy endpoints.
type TableHandler struct {
	svc TableServicer
	qr  TableQR
	log *zap.Logger
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer, qr TableQR, log *zap.Logger) *TableHandler {
	return &TableHandler{svc: svc, qr: qr, log: log}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/bill", h.Bill)
	r.Get("/{id}/qr.png", h.QRCode)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleWaiter))
		r.Post("/{id}/release", h.Release)
		r.Patch("/{id}/status", h.SetStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Patch("/{id}/waiter", h.AssignWaiter)
	})
}

// --- Request / Response types ---

type createTableRequest struct {
	Number   int32  `json:"number"`
	Capacity int32  `json:"capacity"`
	WaiterID string `json:"waiter_id"`
}

type setTableStatusRequest struct {
	Status string `json:"status"`
}

type assignWaiterRequest struct {
	WaiterID string `json:"waiter_id"`
}

type tableResponse struct {
	ID            uuid.UUID  `json:"id"`
	Number        int32      `json:"number"`
	Capacity      int32      `json:"capacity"`
	WaiterID      *string    `json:"waiter_id"`
	Status        string     `json:"status"`
	HasPaidTab    bool       `json:"has_paid_tab"`
	AllTabsPaid   bool       `json:"all_tabs_paid"`
	OccupiedSince *time.Time `json:"occupied_since"`
	OpenTabs      *int64     `json:"open_tabs,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type statusChangeResponse struct {
	Table       tableResponse `json:"table"`
	ForceClosed []tabResponse `json:"force_closed"`
}

type tableBillResponse struct {
	Table         tableResponse     `json:"table"`
	Tabs          []tabBillResponse `json:"tabs"`
	Subtotal      string            `json:"subtotal"`
	ServiceCharge string            `json:"service_charge"`
	FinalTotal    string            `json:"final_total"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:            t.ID,
		Number:        t.Number,
		Capacity:      t.Capacity,
		WaiterID:      optUUID(t.WaiterID),
		Status:        t.Status,
		HasPaidTab:    t.HasPaidTab,
		AllTabsPaid:   t.AllTabsPaid,
		OccupiedSince: optTime(t.OccupiedSince),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func toTableRowResponse(row database.ListTablesRow) tableResponse {
	resp := toTableResponse(row.Table)
	n := row.OpenTabs
	resp.OpenTabs = &n
	return resp
}

// --- Handlers ---

// List returns every table with its open-tab count.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "list tables", err)
		return
	}
	resp := make([]tableResponse, len(rows))
	for i, row := range rows {
		resp[i] = toTableRowResponse(row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one table.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableRowResponse(row))
}

// Create registers a new table.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	waiterID, err := optionalUUID(req.WaiterID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid waiter_id")
		return
	}

	table, err := h.svc.Create(r.Context(), service.CreateTableRequest{
		Number:   req.Number,
		Capacity: req.Capacity,
		WaiterID: waiterID,
	})
	if err != nil {
		writeServiceError(w, h.log, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// Release frees a table once every tab of the episode is settled.
func (h *TableHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	table, err := h.svc.Release(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "release table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// SetStatus is the manual status override.
func (h *TableHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	var req setTableStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	change, err := h.svc.SetStatus(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		writeServiceError(w, h.log, "set table status", err)
		return
	}

	resp := statusChangeResponse{
		Table:       toTableResponse(change.Table),
		ForceClosed: make([]tabResponse, len(change.ForceClosed)),
	}
	for i, tab := range change.ForceClosed {
		resp.ForceClosed[i] = toTabResponse(tab)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Bill returns the consolidated bill of every open tab on the table.
func (h *TableHandler) Bill(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	bill, err := h.svc.CalculateTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "calculate table", err)
		return
	}

	resp := tableBillResponse{
		Table:         toTableResponse(bill.Table),
		Tabs:          make([]tabBillResponse, len(bill.Tabs)),
		Subtotal:      bill.Subtotal.StringFixed(2),
		ServiceCharge: bill.ServiceCharge.StringFixed(2),
		FinalTotal:    bill.FinalTotal.StringFixed(2),
	}
	for i, tb := range bill.Tabs {
		resp.Tabs[i] = toTabBillResponse(tb)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssignWaiter sets or clears (empty waiter_id) the responsible waiter.
func (h *TableHandler) AssignWaiter(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	var req assignWaiterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	waiterID, err := optionalUUID(req.WaiterID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid waiter_id")
		return
	}

	table, err := h.svc.AssignWaiter(r.Context(), id, waiterID)
	if err != nil {
		writeServiceError(w, h.log, "assign waiter", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// QRCode returns the table's menu QR code as PNG. ?size= sets the edge in pixels.
func (h *TableHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "table")
	if !ok {
		return
	}
	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get table", err)
		return
	}

	png, err := h.qr.Table(row.ID, row.Number, queryInt(r, "size", 0, 1024))
	if err != nil {
		h.log.Error("render table qr", zap.Stringer("table_id", id), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="table-`+strconv.Itoa(int(row.Number))+`.png"`)
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}
