package service

import (
	"context"
	"fmt"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
)

// AddOrderRequest is the validated input for ordering one menu item.
type AddOrderRequest struct {
	TabID      uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	Notes      string
}

// UpdateOrderRequest carries the optional fields of an order edit.
// Nil means "leave unchanged".
type UpdateOrderRequest struct {
	ID       uuid.UUID
	Quantity *int32
	Status   *string
	Notes    *string
}

// LedgerService manages the line items of tabs.
type LedgerService struct {
	base
	policy TransitionPolicy
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(d Deps, policy TransitionPolicy) *LedgerService {
	if policy == "" {
		policy = PolicyForward
	}
	return &LedgerService{base: newBase(d), policy: policy}
}

// AddOrder freezes the menu item's current price onto a new line item and
// recomputes the tab total in the same transaction.
func (s *LedgerService) AddOrder(ctx context.Context, req AddOrderRequest) (database.Order, error) {
	orders, err := s.AddOrders(ctx, req.TabID, []AddOrderRequest{req})
	if err != nil {
		return database.Order{}, err
	}
	return orders[0], nil
}

// AddOrders adds several line items to one tab in a single transaction:
// either every line is added or none is. The TabID of each request is
// ignored in favour of tabID.
func (s *LedgerService) AddOrders(ctx context.Context, tabID uuid.UUID, reqs []AddOrderRequest) ([]database.Order, error) {
	if len(reqs) == 0 {
		return nil, ErrNoOrderLines
	}
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	orders := make([]database.Order, 0, len(reqs))
	var tab database.Tab
	err := s.inTx(ctx, func(store Store) error {
		locked, err := store.GetTabForUpdate(ctx, tabID)
		if err != nil {
			return lookupErr(err, ErrTabNotFound, "get tab")
		}
		for _, req := range reqs {
			item, err := store.GetMenuItem(ctx, req.MenuItemID)
			if err != nil {
				return lookupErr(err, ErrMenuItemNotFound, "get menu item")
			}
			if !item.Available {
				return ErrMenuItemUnavailable
			}
			if locked.Status != enum.TabStatusOpen {
				return ErrTabNotOpen
			}

			price := numericToDecimal(item.Price)
			order, err := store.CreateOrder(ctx, database.CreateOrderParams{
				TabID:                 locked.ID,
				MenuItemID:            item.ID,
				Quantity:              req.Quantity,
				UnitPrice:             decimalToNumeric(price),
				LineTotal:             decimalToNumeric(billing.LineTotal(price, req.Quantity)),
				Notes:                 textToPg(req.Notes),
				ServiceChargeIncluded: locked.ServiceChargeIncluded,
				SentToKitchenAt:       s.now(),
			})
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			orders = append(orders, order)
		}

		tab, err = store.RecomputeTabTotal(ctx, locked.ID)
		if err != nil {
			return fmt.Errorf("recompute tab total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evts := make([]events.Event, 0, len(orders)+1)
	for _, order := range orders {
		evts = append(evts, events.Event{Type: events.OrderCreated, Room: events.RoomKitchen, Key: tab.ID.String(), Payload: order})
	}
	evts = append(evts, events.Event{Type: events.TabUpdated, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
	s.publish(ctx, evts...)
	return orders, nil
}

// UpdateOrder edits quantity, kitchen status and notes. Quantity changes
// re-price from the frozen unit price; status changes stamp the matching
// timestamp and are checked against the transition policy.
func (s *LedgerService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (database.Order, error) {
	if req.Quantity == nil && req.Status == nil && req.Notes == nil {
		return database.Order{}, ErrNothingToUpdate
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return database.Order{}, ErrInvalidQuantity
	}
	if req.Status != nil && !enum.IsOrderStatus(*req.Status) {
		return database.Order{}, ErrInvalidOrderStatus
	}

	var order database.Order
	var tab database.Tab
	var totalChanged bool
	err := s.inTx(ctx, func(store Store) error {
		current, err := store.GetOrder(ctx, req.ID)
		if err != nil {
			return lookupErr(err, ErrOrderNotFound, "get order")
		}
		tab, err = store.GetTabForUpdate(ctx, current.TabID)
		if err != nil {
			return lookupErr(err, ErrTabNotFound, "get tab")
		}
		// Re-read under the tab lock; a concurrent edit may have landed.
		order, err = store.GetOrder(ctx, req.ID)
		if err != nil {
			return lookupErr(err, ErrOrderNotFound, "get order")
		}

		if (req.Quantity != nil || req.Notes != nil) && tab.Status != enum.TabStatusOpen {
			return ErrTabNotOpen
		}

		if req.Quantity != nil && *req.Quantity != order.Quantity {
			line := billing.LineTotal(numericToDecimal(order.UnitPrice), *req.Quantity)
			order, err = store.UpdateOrderQuantity(ctx, database.UpdateOrderQuantityParams{
				ID:        order.ID,
				Quantity:  *req.Quantity,
				LineTotal: decimalToNumeric(line),
			})
			if err != nil {
				return fmt.Errorf("update order quantity: %w", err)
			}
			tab, err = store.RecomputeTabTotal(ctx, tab.ID)
			if err != nil {
				return fmt.Errorf("recompute tab total: %w", err)
			}
			totalChanged = true
		}

		if req.Status != nil && *req.Status != order.Status {
			if !s.policy.Allows(order.Status, *req.Status) {
				return ErrInvalidTransition
			}
			order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
				ID:     order.ID,
				Status: *req.Status,
				At:     timeToPg(s.now()),
			})
			if err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}

		if req.Notes != nil {
			order, err = store.UpdateOrderNotes(ctx, database.UpdateOrderNotesParams{
				ID:    order.ID,
				Notes: textToPg(*req.Notes),
			})
			if err != nil {
				return fmt.Errorf("update order notes: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return database.Order{}, err
	}

	evts := []events.Event{
		{Type: events.OrderUpdated, Room: events.RoomKitchen, Key: order.TabID.String(), Payload: order},
	}
	if totalChanged {
		evts = append(evts, events.Event{Type: events.TabUpdated, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
	}
	s.publish(ctx, evts...)
	return order, nil
}

// DeleteOrder removes a line item from an open tab and recomputes its total.
func (s *LedgerService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var order database.Order
	var tab database.Tab
	err := s.inTx(ctx, func(store Store) error {
		current, err := store.GetOrder(ctx, id)
		if err != nil {
			return lookupErr(err, ErrOrderNotFound, "get order")
		}
		tab, err = store.GetTabForUpdate(ctx, current.TabID)
		if err != nil {
			return lookupErr(err, ErrTabNotFound, "get tab")
		}
		order, err = store.GetOrder(ctx, id)
		if err != nil {
			return lookupErr(err, ErrOrderNotFound, "get order")
		}
		if tab.Status != enum.TabStatusOpen {
			return ErrTabNotOpen
		}

		if err := store.DeleteOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		tab, err = store.RecomputeTabTotal(ctx, tab.ID)
		if err != nil {
			return fmt.Errorf("recompute tab total: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx,
		events.Event{Type: events.OrderDeleted, Room: events.RoomKitchen, Key: tab.ID.String(), Payload: order},
		events.Event{Type: events.TabUpdated, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab},
	)
	return nil
}

// GetOrder returns a single line item.
func (s *LedgerService) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	order, err := s.reader().GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, lookupErr(err, ErrOrderNotFound, "get order")
	}
	return order, nil
}

// KitchenQueue lists undelivered items oldest first.
func (s *LedgerService) KitchenQueue(ctx context.Context) ([]database.ListKitchenQueueRow, error) {
	rows, err := s.reader().ListKitchenQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kitchen queue: %w", err)
	}
	return rows, nil
}

// ListByTab lists a tab's line items with menu item names.
func (s *LedgerService) ListByTab(ctx context.Context, tabID uuid.UUID) ([]database.ListTabLinesRow, error) {
	store := s.reader()
	if _, err := store.GetTab(ctx, tabID); err != nil {
		return nil, lookupErr(err, ErrTabNotFound, "get tab")
	}
	rows, err := store.ListTabLines(ctx, tabID)
	if err != nil {
		return nil, fmt.Errorf("list tab lines: %w", err)
	}
	return rows, nil
}
