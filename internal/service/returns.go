package service

import (
	"context"
	"fmt"

	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/enum"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/comanda-pos/floor/internal/photo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore keeps uploaded photos. Satisfied by *storage.ObjectStore.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	DeleteKey(ctx context.Context, key string) error
}

// SourceLocator points a return at the tab (COMANDA) or table (MESA) it was
// reported from.
type SourceLocator struct {
	Kind string
	ID   uuid.UUID
}

// CreateReturnRequest flags a problem with one delivered order.
type CreateReturnRequest struct {
	OrderID     uuid.UUID
	Category    string
	Subcategory string
	Description string
	Source      *SourceLocator
	Image       []byte
	RequestedBy uuid.UUID
}

// ReturnService runs the order return workflow. Returns are informational:
// nothing here touches orders or tabs.
type ReturnService struct {
	base
	objects ObjectStore
}

// NewReturnService creates a new ReturnService. objects may be nil, in which
// case photo uploads are refused.
func NewReturnService(d Deps, objects ObjectStore) *ReturnService {
	return &ReturnService{base: newBase(d), objects: objects}
}

// Categories lists the allowed subcategories per category.
func (s *ReturnService) Categories() map[string][]string {
	out := make(map[string][]string, len(enum.ReturnSubcategories))
	for cat, subs := range enum.ReturnSubcategories {
		out[cat] = append([]string(nil), subs...)
	}
	return out
}

// Create validates and records a PENDING return request.
func (s *ReturnService) Create(ctx context.Context, req CreateReturnRequest) (database.ReturnRequest, error) {
	if _, ok := enum.ReturnSubcategories[req.Category]; !ok {
		return database.ReturnRequest{}, ErrInvalidReturnCategory
	}
	if !enum.IsReturnSubcategory(req.Category, req.Subcategory) {
		return database.ReturnRequest{}, ErrInvalidReturnSubcategory
	}
	if req.Source != nil && !validSource(*req.Source) {
		return database.ReturnRequest{}, ErrInvalidReturnSource
	}

	var imageKey string
	if len(req.Image) > 0 {
		var err error
		if imageKey, err = s.upload(ctx, req.Image); err != nil {
			return database.ReturnRequest{}, err
		}
	}

	var rr database.ReturnRequest
	err := s.inTx(ctx, func(store Store) error {
		order, err := store.GetOrder(ctx, req.OrderID)
		if err != nil {
			return lookupErr(err, ErrOrderNotFound, "get order")
		}

		params := database.CreateReturnRequestParams{
			OrderID:     order.ID,
			Category:    req.Category,
			Subcategory: req.Subcategory,
			Description: textToPg(req.Description),
			ImageKey:    textToPg(imageKey),
			RequestedBy: req.RequestedBy,
		}
		if req.Source != nil {
			if err := checkSource(ctx, store, *req.Source); err != nil {
				return err
			}
			params.SourceType = textToPg(req.Source.Kind)
			params.SourceID = uuidToPg(req.Source.ID)
		}

		rr, err = store.CreateReturnRequest(ctx, params)
		if err != nil {
			return fmt.Errorf("create return request: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, imageKey)
		return database.ReturnRequest{}, err
	}

	s.publish(ctx, events.Event{Type: events.ReturnCreated, Room: events.RoomFloor, Key: rr.OrderID.String(), Payload: rr})
	return rr, nil
}

// AttachImage replaces the photo of a return request.
func (s *ReturnService) AttachImage(ctx context.Context, id uuid.UUID, image []byte) (database.ReturnRequest, error) {
	key, err := s.upload(ctx, image)
	if err != nil {
		return database.ReturnRequest{}, err
	}

	var rr database.ReturnRequest
	var previous string
	err = s.inTx(ctx, func(store Store) error {
		locked, err := store.GetReturnRequestForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, ErrReturnNotFound, "get return request")
		}
		previous = locked.ImageKey.String
		rr, err = store.SetReturnImage(ctx, database.SetReturnImageParams{ID: locked.ID, ImageKey: textToPg(key)})
		if err != nil {
			return fmt.Errorf("set return image: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, key)
		return database.ReturnRequest{}, err
	}
	s.discard(ctx, previous)
	return rr, nil
}

// Resolve sets a terminal status. Resolver and timestamp are stamped only on
// the first move away from PENDING.
func (s *ReturnService) Resolve(ctx context.Context, id uuid.UUID, status string, resolver uuid.UUID) (database.ReturnRequest, error) {
	switch status {
	case enum.ReturnStatusApproved, enum.ReturnStatusRejected, enum.ReturnStatusResolved:
	default:
		return database.ReturnRequest{}, ErrInvalidReturnStatus
	}

	var rr database.ReturnRequest
	err := s.inTx(ctx, func(store Store) error {
		locked, err := store.GetReturnRequestForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, ErrReturnNotFound, "get return request")
		}
		params := database.ResolveReturnRequestParams{
			ID:         locked.ID,
			Status:     status,
			ResolvedBy: locked.ResolvedBy,
			ResolvedAt: locked.ResolvedAt,
		}
		if locked.Status == enum.ReturnStatusPending {
			params.ResolvedBy = uuidToPg(resolver)
			params.ResolvedAt = timeToPg(s.now())
		}
		rr, err = store.ResolveReturnRequest(ctx, params)
		if err != nil {
			return fmt.Errorf("resolve return request: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.ReturnRequest{}, err
	}

	s.publish(ctx, events.Event{Type: events.ReturnResolved, Room: events.RoomFloor, Key: rr.OrderID.String(), Payload: rr})
	return rr, nil
}

// Get returns a single request.
func (s *ReturnService) Get(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error) {
	rr, err := s.reader().GetReturnRequest(ctx, id)
	if err != nil {
		return database.ReturnRequest{}, lookupErr(err, ErrReturnNotFound, "get return request")
	}
	return rr, nil
}

// List returns requests newest first, optionally filtered by status.
func (s *ReturnService) List(ctx context.Context, status string) ([]database.ReturnRequest, error) {
	switch status {
	case "", enum.ReturnStatusPending, enum.ReturnStatusApproved, enum.ReturnStatusRejected, enum.ReturnStatusResolved:
	default:
		return nil, ErrInvalidReturnStatus
	}
	rows, err := s.reader().ListReturnRequests(ctx, textToPg(status))
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	return rows, nil
}

func (s *ReturnService) upload(ctx context.Context, data []byte) (string, error) {
	if s.objects == nil {
		return "", ErrImageStoreDisabled
	}
	body, _, err := photo.Normalize(data)
	if err != nil {
		return "", ErrInvalidImage
	}
	key := fmt.Sprintf("returns/%s.jpg", uuid.New())
	if _, err := s.objects.PutObject(ctx, key, body, photo.ContentType, ""); err != nil {
		return "", fmt.Errorf("upload return photo: %w", err)
	}
	return key, nil
}

// discard removes an object that is no longer referenced. Failures only leave
// an orphan behind, so they are logged.
func (s *ReturnService) discard(ctx context.Context, key string) {
	if key == "" || s.objects == nil {
		return
	}
	if err := s.objects.DeleteKey(ctx, key); err != nil {
		s.Logger.Warn("delete return photo", zap.String("key", key), zap.Error(err))
	}
}

func validSource(src SourceLocator) bool {
	return (src.Kind == enum.SourceComanda || src.Kind == enum.SourceMesa) && src.ID != uuid.Nil
}

func checkSource(ctx context.Context, store Store, src SourceLocator) error {
	if src.Kind == enum.SourceComanda {
		if _, err := store.GetTab(ctx, src.ID); err != nil {
			return lookupErr(err, ErrTabNotFound, "get source tab")
		}
		return nil
	}
	if _, err := store.GetTable(ctx, src.ID); err != nil {
		return lookupErr(err, ErrTableNotFound, "get source table")
	}
	return nil
}
