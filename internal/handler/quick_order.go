package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/middleware"
	"github.com/comanda-pos/floor/internal/quickorder"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// --- Store interfaces ---

// OrderBatcher adds several lines to a tab atomically.
// Satisfied by *service.LedgerService.
type OrderBatcher interface {
	AddOrders(ctx context.Context, tabID uuid.UUID, reqs []service.AddOrderRequest) ([]database.Order, error)
}

// MenuLister lists menu items. Satisfied by *database.Queries.
type MenuLister interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
}

// --- Handler ---

// QuickOrderHandler turns a typed ticket into order lines on a tab.
type QuickOrderHandler struct {
	ledger OrderBatcher
	menu   MenuLister
	log    *zap.Logger
}

// NewQuickOrderHandler creates a new QuickOrderHandler.
func NewQuickOrderHandler(ledger OrderBatcher, menu MenuLister, log *zap.Logger) *QuickOrderHandler {
	return &QuickOrderHandler{ledger: ledger, menu: menu, log: log}
}

// RegisterTabRoutes registers the ticket endpoint. Expected to be mounted at /tabs.
func (h *QuickOrderHandler) RegisterTabRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleWaiter)).Post("/{id}/quick-order", h.Create)
}

// --- Request / Response types ---

type quickOrderRequest struct {
	Text   string `json:"text"`
	DryRun bool   `json:"dry_run"`
}

type quickOrderItem struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type quickOrderLineResponse struct {
	Line       string           `json:"line"`
	Quantity   int32            `json:"quantity"`
	Notes      string           `json:"notes,omitempty"`
	Status     string           `json:"status"`
	MenuItem   *quickOrderItem  `json:"menu_item,omitempty"`
	Candidates []quickOrderItem `json:"candidates,omitempty"`
}

type quickOrderResponse struct {
	Lines    []quickOrderLineResponse `json:"lines"`
	Warnings []string                 `json:"warnings"`
	Orders   []orderResponse          `json:"orders"`
}

// --- Handler method ---

// Create parses the ticket and matches each line against the available menu.
// Orders are added only when every line resolves to exactly one menu item;
// otherwise the match report comes back with 422 so the waiter can fix the
// ticket. dry_run returns the report without adding anything.
func (h *QuickOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlID(w, r, "tab")
	if !ok {
		return
	}
	var req quickOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeMessage(w, http.StatusBadRequest, "text is required")
		return
	}

	ticket, err := quickorder.Parse(req.Text)
	if err != nil {
		if errors.Is(err, quickorder.ErrEmptyTicket) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, h.log, "parse ticket", err)
		return
	}

	items, err := h.menu.ListMenuItems(r.Context(), database.ListMenuItemsParams{
		Available: pgtype.Bool{Bool: true, Valid: true},
	})
	if err != nil {
		h.log.Error("list menu items", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	catalog := make([]quickorder.Item, len(items))
	for i, item := range items {
		catalog[i] = quickorder.Item{ID: item.ID, Name: item.Name}
	}
	m := quickorder.NewMatcher(catalog)

	resp := quickOrderResponse{
		Lines:    make([]quickOrderLineResponse, len(ticket.Lines)),
		Warnings: ticket.Warnings,
		Orders:   []orderResponse{},
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	reqs := make([]service.AddOrderRequest, 0, len(ticket.Lines))
	allMatched := true
	for i, line := range ticket.Lines {
		result := m.Match(line.Description)
		lr := quickOrderLineResponse{
			Line:     line.Raw,
			Quantity: line.Quantity,
			Notes:    line.Notes,
			Status:   result.Status.String(),
		}
		switch result.Status {
		case quickorder.Matched:
			lr.MenuItem = &quickOrderItem{ID: result.Item.ID, Name: result.Item.Name}
			reqs = append(reqs, service.AddOrderRequest{
				TabID:      tabID,
				MenuItemID: result.Item.ID,
				Quantity:   line.Quantity,
				Notes:      line.Notes,
			})
		case quickorder.Ambiguous:
			allMatched = false
			for _, c := range result.Candidates {
				lr.Candidates = append(lr.Candidates, quickOrderItem{ID: c.ID, Name: c.Name})
			}
		default:
			allMatched = false
		}
		resp.Lines[i] = lr
	}

	if req.DryRun {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if !allMatched {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	orders, err := h.ledger.AddOrders(r.Context(), tabID, reqs)
	if err != nil {
		writeServiceError(w, h.log, "add ticket orders", err)
		return
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusCreated, resp)
}
