package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/middleware"
	"github.com/comanda-pos/floor/internal/receipt"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TabServicer defines the service methods needed by tab handlers.
// Satisfied by *service.TabService; narrow interface for testability.
type TabServicer interface {
	Open(ctx context.Context, req service.OpenTabRequest) (database.Tab, error)
	Get(ctx context.Context, id uuid.UUID) (service.TabDetail, error)
	List(ctx context.Context, f service.ListTabsFilter) ([]database.Tab, error)
	Calculate(ctx context.Context, id uuid.UUID) (service.TabBill, error)
	Close(ctx context.Context, req service.CloseTabRequest) (database.Tab, error)
	ToggleServiceCharge(ctx context.Context, id uuid.UUID, included bool) (database.Tab, error)
	RequestBill(ctx context.Context, id uuid.UUID) (database.Tab, error)
	Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error
}

// TableLookup resolves a tab's table for receipts. Satisfied by *service.TableService.
type TableLookup interface {
	Get(ctx context.Context, id uuid.UUID) (database.ListTablesRow, error)
}

// TabHandler handles tab account endpoints.
type TabHandler struct {
	svc            TabServicer
	tables         TableLookup
	restaurantName string
	log            *zap.Logger
}

// NewTabHandler creates a new TabHandler.
func NewTabHandler(svc TabServicer, tables TableLookup, restaurantName string, log *zap.Logger) *TabHandler {
	return &TabHandler{svc: svc, tables: tables, restaurantName: restaurantName, log: log}
}

// RegisterRoutes registers tab endpoints on the given Chi router.
// Expected to be mounted at /tabs.
func (h *TabHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/bill", h.Bill)
	r.Get("/{id}/receipt.pdf", h.Receipt)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleWaiter))
		r.Post("/", h.Open)
		r.Post("/{id}/close", h.Close)
		r.Patch("/{id}/service-charge", h.ToggleServiceCharge)
		r.Post("/{id}/request-bill", h.RequestBill)
	})

	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type openTabRequest struct {
	TableID    string `json:"table_id"`
	PersonName string `json:"person_name"`
}

type closeTabRequest struct {
	PaymentMethod               string `json:"payment_method"`
	PaidAmount                  string `json:"paid_amount"`
	ServiceChargeIncluded       *bool  `json:"service_charge_included"`
	ServiceChargePaidSeparately bool   `json:"service_charge_paid_separately"`
}

type toggleServiceChargeRequest struct {
	Included *bool `json:"included"`
}

type tabResponse struct {
	ID                          uuid.UUID  `json:"id"`
	TableID                     *string    `json:"table_id"`
	Type                        string     `json:"type"`
	Status                      string     `json:"status"`
	Total                       string     `json:"total"`
	ServiceChargeIncluded       bool       `json:"service_charge_included"`
	ServiceChargePaidSeparately bool       `json:"service_charge_paid_separately"`
	ServiceCharge               string     `json:"service_charge"`
	FinalTotal                  string     `json:"final_total"`
	PaymentMethod               *string    `json:"payment_method"`
	PaidAmount                  string     `json:"paid_amount"`
	ChangeAmount                string     `json:"change_amount"`
	OpenedBy                    *string    `json:"opened_by"`
	CustomerSeatedAt            *time.Time `json:"customer_seated_at"`
	BillRequestedAt             *time.Time `json:"bill_requested_at"`
	PaidAt                      *time.Time `json:"paid_at"`
	ClosedAt                    *time.Time `json:"closed_at"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

type partyResponse struct {
	PersonName string    `json:"person_name"`
	SeatedAt   time.Time `json:"seated_at"`
}

type tabDetailResponse struct {
	tabResponse
	Party *partyResponse      `json:"party"`
	Lines []orderLineResponse `json:"lines"`
}

type tabBillResponse struct {
	TabID                       uuid.UUID `json:"tab_id"`
	Status                      string    `json:"status"`
	Subtotal                    string    `json:"subtotal"`
	ServiceCharge               string    `json:"service_charge"`
	FinalTotal                  string    `json:"final_total"`
	ServiceChargeIncluded       bool      `json:"service_charge_included"`
	ServiceChargePaidSeparately bool      `json:"service_charge_paid_separately"`
}

func toTabResponse(t database.Tab) tabResponse {
	return tabResponse{
		ID:                          t.ID,
		TableID:                     optUUID(t.TableID),
		Type:                        t.Type,
		Status:                      t.Status,
		Total:                       money(t.Total),
		ServiceChargeIncluded:       t.ServiceChargeIncluded,
		ServiceChargePaidSeparately: t.ServiceChargePaidSeparately,
		ServiceCharge:               money(t.ServiceCharge),
		FinalTotal:                  money(t.FinalTotal),
		PaymentMethod:               optText(t.PaymentMethod),
		PaidAmount:                  money(t.PaidAmount),
		ChangeAmount:                money(t.ChangeAmount),
		OpenedBy:                    optUUID(t.OpenedBy),
		CustomerSeatedAt:            optTime(t.CustomerSeatedAt),
		BillRequestedAt:             optTime(t.BillRequestedAt),
		PaidAt:                      optTime(t.PaidAt),
		ClosedAt:                    optTime(t.ClosedAt),
		CreatedAt:                   t.CreatedAt,
		UpdatedAt:                   t.UpdatedAt,
	}
}

func toTabBillResponse(b service.TabBill) tabBillResponse {
	return tabBillResponse{
		TabID:                       b.Tab.ID,
		Status:                      b.Tab.Status,
		Subtotal:                    b.Subtotal.StringFixed(2),
		ServiceCharge:               b.ServiceCharge.StringFixed(2),
		FinalTotal:                  b.FinalTotal.StringFixed(2),
		ServiceChargeIncluded:       b.ServiceChargeIncluded,
		ServiceChargePaidSeparately: b.ServiceChargePaidSeparately,
	}
}

// --- Handlers ---

// Open starts a tab; with table_id it seats the party at that table.
func (h *TabHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openTabRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tableID, err := optionalUUID(req.TableID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	tab, err := h.svc.Open(r.Context(), service.OpenTabRequest{
		TableID:    tableID,
		PersonName: req.PersonName,
		OpenedBy:   actorID(r),
	})
	if err != nil {
		writeServiceError(w, h.log, "open tab", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTabResponse(tab))
}

// List returns tabs newest first, filtered by ?status= and ?table_id=.
func (h *TabHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tableID, err := optionalUUID(q.Get("table_id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	tabs, err := h.svc.List(r.Context(), service.ListTabsFilter{
		Status:  q.Get("status"),
		TableID: tableID,
		Limit:   int32(queryInt(r, "limit", 50, 200)),
		Offset:  int32(queryInt(r, "offset", 0, 0)),
	})
	if err != nil {
		writeServiceError(w, h.log, "list tabs", err)
		return
	}
	resp := make([]tabResponse, len(tabs))
	for i, t := range tabs {
		resp[i] = toTabResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a tab with its party and line items.
func (h *TabHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get tab", err)
		return
	}

	resp := tabDetailResponse{
		tabResponse: toTabResponse(detail.Tab),
		Lines:       make([]orderLineResponse, len(detail.Lines)),
	}
	if detail.Party != nil {
		resp.Party = &partyResponse{PersonName: detail.Party.PersonName, SeatedAt: detail.Party.SeatedAt}
	}
	for i, line := range detail.Lines {
		resp.Lines[i] = toOrderLineResponse(line)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Bill projects the tab's bill without writing anything.
func (h *TabHandler) Bill(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	bill, err := h.svc.Calculate(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "calculate tab", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabBillResponse(bill))
}

// Close settles the tab. An omitted service_charge_included keeps the tab's own flag.
func (h *TabHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	var req closeTabRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	paid, err := decimal.NewFromString(req.PaidAmount)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid paid_amount")
		return
	}

	tab, err := h.svc.Close(r.Context(), service.CloseTabRequest{
		TabID:                       id,
		PaymentMethod:               req.PaymentMethod,
		PaidAmount:                  paid,
		ServiceChargeIncluded:       req.ServiceChargeIncluded,
		ServiceChargePaidSeparately: req.ServiceChargePaidSeparately,
	})
	if err != nil {
		writeServiceError(w, h.log, "close tab", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabResponse(tab))
}

// ToggleServiceCharge flips the service charge choice on an open tab.
func (h *TabHandler) ToggleServiceCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	var req toggleServiceChargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Included == nil {
		writeMessage(w, http.StatusBadRequest, "included is required")
		return
	}

	tab, err := h.svc.ToggleServiceCharge(r.Context(), id, *req.Included)
	if err != nil {
		writeServiceError(w, h.log, "toggle service charge", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabResponse(tab))
}

// RequestBill records that the customer asked for the bill.
func (h *TabHandler) RequestBill(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	tab, err := h.svc.RequestBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "request bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabResponse(tab))
}

// Delete removes a tab with its orders and party.
func (h *TabHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id, actorID(r)); err != nil {
		writeServiceError(w, h.log, "delete tab", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Receipt renders the tab's bill as a PDF. Open tabs get a pre-bill with
// projected totals; settled tabs print what was charged.
func (h *TabHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get tab", err)
		return
	}
	tab := detail.Tab

	data := receipt.Data{
		RestaurantName: h.restaurantName,
		TabID:          tab.ID.String(),
		TabStatus:      tab.Status,
		OpenedAt:       tab.CreatedAt,
		Lines:          make([]receipt.Line, len(detail.Lines)),
		PaidAmount:     numericToDecimal(tab.PaidAmount),
		ChangeAmount:   numericToDecimal(tab.ChangeAmount),
	}
	if detail.Party != nil {
		data.PersonName = detail.Party.PersonName
	}
	if tab.ClosedAt.Valid {
		data.ClosedAt = tab.ClosedAt.Time
	}
	if tab.PaymentMethod.Valid {
		data.PaymentMethod = tab.PaymentMethod.String
	}
	for i, line := range detail.Lines {
		data.Lines[i] = receipt.Line{
			Quantity:  line.Quantity,
			Name:      line.MenuItemName,
			UnitPrice: numericToDecimal(line.UnitPrice),
			LineTotal: numericToDecimal(line.LineTotal),
		}
		if line.Notes.Valid {
			data.Lines[i].Notes = line.Notes.String
		}
	}

	if tab.TableID.Valid && h.tables != nil {
		table, err := h.tables.Get(r.Context(), uuid.UUID(tab.TableID.Bytes))
		if err != nil {
			writeServiceError(w, h.log, "get table", err)
			return
		}
		data.TableNumber = table.Number
	}

	if tab.Status == enum.TabStatusOpen {
		bill, err := h.svc.Calculate(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.log, "calculate tab", err)
			return
		}
		data.Bill = bill.Breakdown
	} else {
		data.Bill = billing.Breakdown{
			Subtotal:                    numericToDecimal(tab.Total),
			ServiceCharge:               numericToDecimal(tab.ServiceCharge),
			FinalTotal:                  numericToDecimal(tab.FinalTotal),
			ServiceChargeIncluded:       tab.ServiceChargeIncluded,
			ServiceChargePaidSeparately: tab.ServiceChargePaidSeparately,
		}
	}

	pdf, err := receipt.Render(data)
	if err != nil {
		h.log.Error("render receipt", zap.Stringer("tab_id", id), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="tab-`+tab.ID.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf) //nolint:errcheck
}
