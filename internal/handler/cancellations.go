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

// CancellationServicer defines the service methods needed by cancellation handlers.
// Satisfied by *service.CancellationService; narrow interface for testability.
type CancellationServicer interface {
	Create(ctx context.Context, req service.CreateCancellationRequest) (database.CancellationRequest, error)
	Resolve(ctx context.Context, req service.ResolveCancellationRequest) (database.CancellationRequest, error)
	Get(ctx context.Context, id uuid.UUID) (database.CancellationRequest, error)
	List(ctx context.Context, status string) ([]database.CancellationRequest, error)
}

// CancellationHandler handles the tab void workflow.
type CancellationHandler struct {
	svc CancellationServicer
	log *zap.Logger
}

// NewCancellationHandler creates a new CancellationHandler.
func NewCancellationHandler(svc CancellationServicer, log *zap.Logger) *CancellationHandler {
	return &CancellationHandler{svc: svc, log: log}
}

// RegisterRoutes registers cancellation endpoints. Expected to be mounted at
// /cancellations.
func (h *CancellationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleWaiter)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Post("/{id}/resolve", h.Resolve)
}

// --- Request / Response types ---

type createCancellationRequest struct {
	TabID    string `json:"tab_id"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

type resolveCancellationRequest struct {
	Status string `json:"status"`
	PIN    string `json:"pin"`
}

type cancellationResponse struct {
	ID          uuid.UUID  `json:"id"`
	TabID       uuid.UUID  `json:"tab_id"`
	Category    string     `json:"category"`
	Reason      *string    `json:"reason"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	Status      string     `json:"status"`
	ApprovedBy  *string    `json:"approved_by"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toCancellationResponse(c database.CancellationRequest) cancellationResponse {
	return cancellationResponse{
		ID:          c.ID,
		TabID:       c.TabID,
		Category:    c.Category,
		Reason:      optText(c.Reason),
		RequestedBy: c.RequestedBy,
		Status:      c.Status,
		ApprovedBy:  optUUID(c.ApprovedBy),
		ResolvedAt:  optTime(c.ResolvedAt),
		CreatedAt:   c.CreatedAt,
	}
}

// --- Handlers ---

// Create files a pending request to void a tab.
func (h *CancellationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCancellationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tabID, err := uuid.Parse(req.TabID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid tab_id")
		return
	}

	c, err := h.svc.Create(r.Context(), service.CreateCancellationRequest{
		TabID:       tabID,
		Category:    req.Category,
		Reason:      req.Reason,
		RequestedBy: actorID(r),
	})
	if err != nil {
		writeServiceError(w, h.log, "create cancellation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCancellationResponse(c))
}

// Resolve approves (voiding the tab) or rejects a pending request.
func (h *CancellationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "cancellation")
	if !ok {
		return
	}
	var req resolveCancellationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.svc.Resolve(r.Context(), service.ResolveCancellationRequest{
		ID:         id,
		Status:     req.Status,
		ApproverID: actorID(r),
		PIN:        req.PIN,
	})
	if err != nil {
		writeServiceError(w, h.log, "resolve cancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, toCancellationResponse(c))
}

// Get returns one request.
func (h *CancellationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "cancellation")
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get cancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, toCancellationResponse(c))
}

// List returns requests newest first, optionally filtered by ?status=.
func (h *CancellationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.log, "list cancellations", err)
		return
	}
	resp := make([]cancellationResponse, len(items))
	for i, c := range items {
		resp[i] = toCancellationResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}
