package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/middleware"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerServicer defines the service methods needed by order handlers.
// Satisfied by *service.LedgerService; narrow interface for testability.
type LedgerServicer interface {
	AddOrder(ctx context.Context, req service.AddOrderRequest) (database.Order, error)
	UpdateOrder(ctx context.Context, req service.UpdateOrderRequest) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	KitchenQueue(ctx context.Context) ([]database.ListKitchenQueueRow, error)
	ListByTab(ctx context.Context, tabID uuid.UUID) ([]database.ListTabLinesRow, error)
}

// OrderHandler handles order ledger and kitchen endpoints.
type OrderHandler struct {
	svc LedgerServicer
	log *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc LedgerServicer, log *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleWaiter, enum.UserRoleKitchen)).Patch("/{id}", h.Update)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleWaiter))
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
}

// RegisterTabRoutes registers the per-tab listing. Expected to be mounted at /tabs.
func (h *OrderHandler) RegisterTabRoutes(r chi.Router) {
	r.Get("/{id}/orders", h.ListByTab)
}

// RegisterKitchenRoutes registers the kitchen display feed. Expected to be
// mounted at /kitchen.
func (h *OrderHandler) RegisterKitchenRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleKitchen, enum.UserRoleWaiter)).Get("/queue", h.KitchenQueue)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TabID      string `json:"tab_id"`
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateOrderRequest struct {
	Quantity *int32  `json:"quantity"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes"`
}

type orderResponse struct {
	ID                    uuid.UUID  `json:"id"`
	TabID                 uuid.UUID  `json:"tab_id"`
	MenuItemID            uuid.UUID  `json:"menu_item_id"`
	Quantity              int32      `json:"quantity"`
	UnitPrice             string     `json:"unit_price"`
	LineTotal             string     `json:"line_total"`
	Status                string     `json:"status"`
	Notes                 *string    `json:"notes"`
	ServiceChargeIncluded bool       `json:"service_charge_included"`
	SentToKitchenAt       time.Time  `json:"sent_to_kitchen_at"`
	StartedPreparingAt    *time.Time `json:"started_preparing_at"`
	ReadyAt               *time.Time `json:"ready_at"`
	DeliveredAt           *time.Time `json:"delivered_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type orderLineResponse struct {
	orderResponse
	MenuItemName string `json:"menu_item_name"`
}

type kitchenTicketResponse struct {
	orderResponse
	MenuItemName string  `json:"menu_item_name"`
	TabType      string  `json:"tab_type"`
	PersonName   *string `json:"person_name"`
	TableNumber  *int32  `json:"table_number"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                    o.ID,
		TabID:                 o.TabID,
		MenuItemID:            o.MenuItemID,
		Quantity:              o.Quantity,
		UnitPrice:             money(o.UnitPrice),
		LineTotal:             money(o.LineTotal),
		Status:                o.Status,
		Notes:                 optText(o.Notes),
		ServiceChargeIncluded: o.ServiceChargeIncluded,
		SentToKitchenAt:       o.SentToKitchenAt,
		StartedPreparingAt:    optTime(o.StartedPreparingAt),
		ReadyAt:               optTime(o.ReadyAt),
		DeliveredAt:           optTime(o.DeliveredAt),
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func toOrderLineResponse(row database.ListTabLinesRow) orderLineResponse {
	return orderLineResponse{orderResponse: toOrderResponse(row.Order), MenuItemName: row.MenuItemName}
}

func toKitchenTicketResponse(row database.ListKitchenQueueRow) kitchenTicketResponse {
	resp := kitchenTicketResponse{
		orderResponse: toOrderResponse(row.Order),
		MenuItemName:  row.MenuItemName,
		TabType:       row.TabType,
		PersonName:    optText(row.PersonName),
	}
	if row.TableNumber.Valid {
		n := row.TableNumber.Int32
		resp.TableNumber = &n
	}
	return resp
}

// --- Handlers ---

// Create adds a line item to an open tab at the menu item's current price.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tabID, err := uuid.Parse(req.TabID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid tab_id")
		return
	}
	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid menu_item_id")
		return
	}

	order, err := h.svc.AddOrder(r.Context(), service.AddOrderRequest{
		TabID:      tabID,
		MenuItemID: menuItemID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.log, "add order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Get returns one order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "order")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Update changes quantity, kitchen status or notes. Omitted fields are kept.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "order")
	if !ok {
		return
	}
	var req updateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.UpdateOrder(r.Context(), service.UpdateOrderRequest{
		ID:       id,
		Quantity: req.Quantity,
		Status:   req.Status,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.log, "update order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Delete removes a line item from an open tab.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "order")
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		writeServiceError(w, h.log, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByTab returns a tab's line items with menu item names.
func (h *OrderHandler) ListByTab(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	lines, err := h.svc.ListByTab(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "list tab orders", err)
		return
	}
	resp := make([]orderLineResponse, len(lines))
	for i, line := range lines {
		resp[i] = toOrderLineResponse(line)
	}
	writeJSON(w, http.StatusOK, resp)
}

// KitchenQueue returns undelivered orders oldest first.
func (h *OrderHandler) KitchenQueue(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.KitchenQueue(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "kitchen queue", err)
		return
	}
	resp := make([]kitchenTicketResponse, len(rows))
	for i, row := range rows {
		resp[i] = toKitchenTicketResponse(row)
	}
	writeJSON(w, http.StatusOK, resp)
}
