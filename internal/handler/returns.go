package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
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

const defaultMaxUploadBytes = 10 << 20

// ReturnServicer defines the service methods needed by return handlers.
// Satisfied by *service.ReturnService; narrow interface for testability.
type ReturnServicer interface {
	Categories() map[string][]string
	Create(ctx context.Context, req service.CreateReturnRequest) (database.ReturnRequest, error)
	AttachImage(ctx context.Context, id uuid.UUID, image []byte) (database.ReturnRequest, error)
	Resolve(ctx context.Context, id uuid.UUID, status string, resolver uuid.UUID) (database.ReturnRequest, error)
	Get(ctx context.Context, id uuid.UUID) (database.ReturnRequest, error)
	List(ctx context.Context, status string) ([]database.ReturnRequest, error)
}

// ImageURLs turns a stored object key into a public URL. Satisfied by
// *storage.ObjectStore.
type ImageURLs interface {
	PublicURL(key string) string
}

// ReturnHandler handles the order return workflow.
type ReturnHandler struct {
	svc      ReturnServicer
	urls     ImageURLs
	maxBytes int64
	log      *zap.Logger
}

// NewReturnHandler creates a new ReturnHandler. urls may be nil when no
// object store is configured.
func NewReturnHandler(svc ReturnServicer, urls ImageURLs, maxBytes int64, log *zap.Logger) *ReturnHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &ReturnHandler{svc: svc, urls: urls, maxBytes: maxBytes, log: log}
}

// RegisterRoutes registers return endpoints. Expected to be mounted at /returns.
func (h *ReturnHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/categories", h.Categories)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleWaiter, enum.UserRoleKitchen))
		r.Post("/", h.Create)
		r.Put("/{id}/image", h.AttachImage)
	})

	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Post("/{id}/resolve", h.Resolve)
}

// --- Request / Response types ---

type createReturnRequest struct {
	OrderID     string `json:"order_id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Description string `json:"description"`
	SourceType  string `json:"source_type"`
	SourceID    string `json:"source_id"`
}

type resolveReturnRequest struct {
	Status string `json:"status"`
}

type returnResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Description *string    `json:"description"`
	SourceType  *string    `json:"source_type"`
	SourceID    *string    `json:"source_id"`
	ImageKey    *string    `json:"image_key"`
	ImageURL    *string    `json:"image_url"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	Status      string     `json:"status"`
	ResolvedBy  *string    `json:"resolved_by"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (h *ReturnHandler) toReturnResponse(rr database.ReturnRequest) returnResponse {
	resp := returnResponse{
		ID:          rr.ID,
		OrderID:     rr.OrderID,
		Category:    rr.Category,
		Subcategory: rr.Subcategory,
		Description: optText(rr.Description),
		SourceType:  optText(rr.SourceType),
		SourceID:    optUUID(rr.SourceID),
		ImageKey:    optText(rr.ImageKey),
		RequestedBy: rr.RequestedBy,
		Status:      rr.Status,
		ResolvedBy:  optUUID(rr.ResolvedBy),
		ResolvedAt:  optTime(rr.ResolvedAt),
		CreatedAt:   rr.CreatedAt,
	}
	if rr.ImageKey.Valid && rr.ImageKey.String != "" && h.urls != nil {
		u := h.urls.PublicURL(rr.ImageKey.String)
		resp.ImageURL = &u
	}
	return resp
}

// --- Handlers ---

// Categories lists the allowed subcategories per return category.
func (h *ReturnHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Categories())
}

// Create records a return. Accepts JSON, or multipart/form-data with the same
// fields plus an optional "image" file.
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	var image []byte

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		req = createReturnRequest{
			OrderID:     r.FormValue("order_id"),
			Category:    r.FormValue("category"),
			Subcategory: r.FormValue("subcategory"),
			Description: r.FormValue("description"),
			SourceType:  r.FormValue("source_type"),
			SourceID:    r.FormValue("source_id"),
		}
		if len(r.MultipartForm.File["image"]) > 0 {
			data, msg := h.readImage(r)
			if msg != "" {
				writeMessage(w, http.StatusBadRequest, msg)
				return
			}
			image = data
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order_id")
		return
	}

	svcReq := service.CreateReturnRequest{
		OrderID:     orderID,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Description: req.Description,
		Image:       image,
		RequestedBy: actorID(r),
	}
	if req.SourceType != "" || req.SourceID != "" {
		sourceID, err := uuid.Parse(req.SourceID)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		svcReq.Source = &service.SourceLocator{Kind: req.SourceType, ID: sourceID}
	}

	rr, err := h.svc.Create(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, h.log, "create return", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toReturnResponse(rr))
}

// AttachImage replaces the photo of a return. Accepts multipart/form-data with
// an "image" file or the raw image bytes as the body.
func (h *ReturnHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "return")
	if !ok {
		return
	}

	var data []byte
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		var msg string
		if data, msg = h.readImage(r); msg != "" {
			writeMessage(w, http.StatusBadRequest, msg)
			return
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "failed to read image")
			return
		}
		if int64(len(body)) > h.maxBytes {
			writeMessage(w, http.StatusRequestEntityTooLarge, tooLargeMessage(h.maxBytes))
			return
		}
		data = body
	}
	if len(data) == 0 {
		writeMessage(w, http.StatusBadRequest, "image is required")
		return
	}

	rr, err := h.svc.AttachImage(r.Context(), id, data)
	if err != nil {
		writeServiceError(w, h.log, "attach return image", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toReturnResponse(rr))
}

// Resolve moves a return to APPROVED, REJECTED or RESOLVED.
func (h *ReturnHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "return")
	if !ok {
		return
	}
	var req resolveReturnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rr, err := h.svc.Resolve(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		writeServiceError(w, h.log, "resolve return", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toReturnResponse(rr))
}

// Get returns one return request.
func (h *ReturnHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "return")
	if !ok {
		return
	}
	rr, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get return", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toReturnResponse(rr))
}

// List returns requests newest first, optionally filtered by ?status=.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.log, "list returns", err)
		return
	}
	resp := make([]returnResponse, len(items))
	for i, rr := range items {
		resp[i] = h.toReturnResponse(rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// readImage reads the "image" form file, returning a client-facing message
// when it is missing or too large.
func (h *ReturnHandler) readImage(r *http.Request) ([]byte, string) {
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "image is required"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return nil, "failed to read image"
	}
	if int64(len(data)) > h.maxBytes {
		return nil, tooLargeMessage(h.maxBytes)
	}
	return data, ""
}

func tooLargeMessage(maxBytes int64) string {
	mb := maxBytes / (1 << 20)
	if mb <= 0 {
		mb = 1
	}
	return fmt.Sprintf("image must be smaller than %dMB", mb)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
