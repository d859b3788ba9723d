package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// CreateCancellationRequest asks for a tab to be voided.
type CreateCancellationRequest struct {
	TabID       uuid.UUID
	Category    string
	Reason      string
	RequestedBy uuid.UUID
}

// ResolveCancellationRequest approves or rejects a pending request.
type ResolveCancellationRequest struct {
	ID         uuid.UUID
	Status     string
	ApproverID uuid.UUID
	PIN        string
}

// CancellationService runs the two-step tab void workflow.
type CancellationService struct {
	base
	approvalPINHash []byte
}

// NewCancellationService creates a new CancellationService. When
// approvalPINHash (bcrypt) is set, approvals must present the matching PIN.
func NewCancellationService(d Deps, approvalPINHash string) *CancellationService {
	s := &CancellationService{base: newBase(d)}
	if approvalPINHash != "" {
		s.approvalPINHash = []byte(approvalPINHash)
	}
	return s
}

// Create files a PENDING request against an open tab. A tab carries at most
// one pending request.
func (s *CancellationService) Create(ctx context.Context, req CreateCancellationRequest) (database.CancellationRequest, error) {
	if !enum.IsCancellationCategory(req.Category) {
		return database.CancellationRequest{}, ErrInvalidCancellationCategory
	}

	var cr database.CancellationRequest
	err := s.inTx(ctx, func(store Store) error {
		tab, err := store.GetTabForUpdate(ctx, req.TabID)
		if err != nil {
			return lookupErr(err, ErrTabNotFound, "get tab")
		}
		if tab.Status != enum.TabStatusOpen {
			return ErrTabNotOpen
		}

		_, err = store.GetPendingCancellationByTab(ctx, tab.ID)
		switch {
		case err == nil:
			return ErrPendingCancellationExists
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("get pending cancellation: %w", err)
		}

		cr, err = store.CreateCancellationRequest(ctx, database.CreateCancellationRequestParams{
			TabID:       tab.ID,
			Category:    req.Category,
			Reason:      textToPg(req.Reason),
			RequestedBy: req.RequestedBy,
		})
		if err != nil {
			if isUniqueViolation(err, "cancellation_requests_one_pending") {
				return ErrPendingCancellationExists
			}
			return fmt.Errorf("create cancellation request: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.CancellationRequest{}, err
	}

	s.publish(ctx, events.Event{Type: events.CancellationRequested, Room: events.RoomFloor, Key: cr.TabID.String(), Payload: cr})
	return cr, nil
}

// Resolve approves or rejects a pending request. Approval cancels the tab
// and re-evaluates its table; a cancellation never counts as a payment.
func (s *CancellationService) Resolve(ctx context.Context, req ResolveCancellationRequest) (database.CancellationRequest, error) {
	if req.Status != enum.CancellationStatusApproved && req.Status != enum.CancellationStatusRejected {
		return database.CancellationRequest{}, ErrInvalidResolution
	}
	if req.Status == enum.CancellationStatusApproved && s.approvalPINHash != nil {
		if err := bcrypt.CompareHashAndPassword(s.approvalPINHash, []byte(req.PIN)); err != nil {
			return database.CancellationRequest{}, ErrInvalidApprovalPIN
		}
	}

	var cr database.CancellationRequest
	var tab database.Tab
	var table *database.Table
	err := s.inTx(ctx, func(store Store) error {
		peek, err := store.GetCancellationRequest(ctx, req.ID)
		if err != nil {
			return lookupErr(err, ErrCancellationNotFound, "get cancellation request")
		}
		lockedTable, lockedTab, err := lockTab(ctx, store, peek.TabID)
		if err != nil {
			return err
		}
		locked, err := store.GetCancellationRequestForUpdate(ctx, req.ID)
		if err != nil {
			return lookupErr(err, ErrCancellationNotFound, "get cancellation request")
		}
		if locked.Status != enum.CancellationStatusPending {
			return ErrCancellationResolved
		}

		now := timeToPg(s.now())
		tab = lockedTab
		if req.Status == enum.CancellationStatusApproved {
			if lockedTab.Status != enum.TabStatusOpen {
				return ErrTabNotOpen
			}
			tab, err = store.CancelTab(ctx, database.CancelTabParams{ID: lockedTab.ID, ClosedAt: now})
			if err != nil {
				return lookupErr(err, ErrTabNotOpen, "cancel tab")
			}
			if lockedTable != nil {
				updated, err := reevaluateTable(ctx, store, *lockedTable, false)
				if err != nil {
					return err
				}
				table = &updated
			}
		}

		cr, err = store.ResolveCancellationRequest(ctx, database.ResolveCancellationRequestParams{
			ID:         locked.ID,
			Status:     req.Status,
			ApprovedBy: uuidToPg(req.ApproverID),
			ResolvedAt: now,
		})
		if err != nil {
			return lookupErr(err, ErrCancellationResolved, "resolve cancellation request")
		}
		desc := fmt.Sprintf("cancellation %s", req.Status)
		return audit(ctx, store, "cancellation_request", cr.ID, "resolve", req.ApproverID, desc, locked, cr)
	})
	if err != nil {
		return database.CancellationRequest{}, err
	}

	evts := []events.Event{{Type: events.CancellationResolved, Room: events.RoomFloor, Key: cr.TabID.String(), Payload: cr}}
	if cr.Status == enum.CancellationStatusApproved {
		evts = append(evts, events.Event{Type: events.TabCancelled, Room: events.RoomFloor, Key: tab.ID.String(), Payload: tab})
		if table != nil {
			evts = append(evts, tableEvent(*table))
		}
	}
	s.publish(ctx, evts...)
	return cr, nil
}

// Get returns a single request.
func (s *CancellationService) Get(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error) {
	cr, err := s.reader().GetCancellationRequest(ctx, id)
	if err != nil {
		return database.CancellationRequest{}, lookupErr(err, ErrCancellationNotFound, "get cancellation request")
	}
	return cr, nil
}

// List returns requests newest first, optionally filtered by status.
func (s *CancellationService) List(ctx context.Context, status string) ([]database.CancellationRequest, error) {
	switch status {
	case "", enum.CancellationStatusPending, enum.CancellationStatusApproved, enum.CancellationStatusRejected:
	default:
		return nil, newError(ErrValidation, "invalid cancellation status")
	}
	rows, err := s.reader().ListCancellationRequests(ctx, textToPg(status))
	if err != nil {
		return nil, fmt.Errorf("list cancellation requests: %w", err)
	}
	return rows, nil
}
