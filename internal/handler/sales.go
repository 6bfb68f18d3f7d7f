package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
	"github.com/atelier-pos/api/internal/service"
)

// SaleServicer defines the service methods needed by sale handlers.
// Satisfied by *service.SaleService.
type SaleServicer interface {
	CreateSale(ctx context.Context, req service.CreateSaleRequest) (*service.SaleResult, error)
}

// SaleReadStore defines the database methods needed by sale read handlers.
type SaleReadStore interface {
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSales(ctx context.Context, arg database.ListSalesParams) ([]database.Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
}

// SaleHandler handles the /ventas endpoints.
type SaleHandler struct {
	svc   SaleServicer
	store SaleReadStore
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(svc SaleServicer, store SaleReadStore) *SaleHandler {
	return &SaleHandler{svc: svc, store: store}
}

// RegisterRoutes registers sale endpoints on the given Chi router.
// Expected to be mounted at /ventas.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type createSaleRequest struct {
	StoreID    string            `json:"tienda_id"`
	Items      []saleItemRequest `json:"items"`
	Methods    map[string]string `json:"metodo_pago"`
	AssignedTo string            `json:"usuario_asignado_id"`
}

type saleItemRequest struct {
	VariantID string `json:"variante_id"`
	Quantity  int32  `json:"cantidad"`
}

type saleItemResponse struct {
	ID          uuid.UUID `json:"id"`
	VariantID   uuid.UUID `json:"variante_id"`
	DisplayName string    `json:"nombre"`
	Sku         string    `json:"sku"`
	Quantity    int32     `json:"cantidad"`
	UnitPrice   string    `json:"precio_unitario"`
	Subtotal    string    `json:"subtotal"`
}

type saleResponse struct {
	ID         uuid.UUID          `json:"id"`
	StoreID    uuid.UUID          `json:"tienda_id"`
	Folio      string             `json:"folio"`
	Total      string             `json:"total"`
	Methods    map[string]string  `json:"metodo_pago"`
	AssignedTo uuid.UUID          `json:"usuario_asignado_id"`
	CreatedBy  uuid.UUID          `json:"creado_por"`
	CreatedAt  time.Time          `json:"creado_en"`
	Items      []saleItemResponse `json:"items,omitempty"`
}

type saleListResponse struct {
	Sales  []saleResponse `json:"ventas"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// --- Handlers ---

// Create handles POST /ventas.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "items are required"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, req.StoreID)
	if !ok {
		return
	}
	assignedTo, ok := resolveAssignedTo(w, claims, req.AssignedTo)
	if !ok {
		return
	}

	items := make([]service.SaleItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.SaleItemRequest{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}

	result, err := h.svc.CreateSale(r.Context(), service.CreateSaleRequest{
		StoreID:    storeID,
		CreatedBy:  claims.UserID,
		AssignedTo: assignedTo,
		Items:      items,
		Methods:    req.Methods,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
		case isLayawayValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		default:
			log.Printf("ERROR: create sale: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		}
		return
	}

	resp := dbSaleToResponse(result.Sale)
	resp.Items = toSaleItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /ventas.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListSalesParams{
		StoreID: storeFilter(claims, r.URL.Query().Get("tienda_id")),
		Limit:   int32(limit),
		Offset:  int32(offset),
	}
	if s := r.URL.Query().Get("fecha_inicio"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid fecha_inicio format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("fecha_fin"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid fecha_fin format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	sales, err := h.store.ListSales(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = dbSaleToResponse(s)
	}
	writeJSON(w, http.StatusOK, saleListResponse{
		Sales:  resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /ventas/{id}.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid venta ID"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "venta not found"})
			return
		}
		log.Printf("ERROR: get sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}
	if !claims.CanCrossStores() && sale.StoreID != claims.StoreID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "venta not found"})
		return
	}

	items, err := h.store.ListSaleItems(r.Context(), saleID)
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := dbSaleToResponse(sale)
	resp.Items = toSaleItemResponses(items)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbSaleToResponse(s database.Sale) saleResponse {
	resp := saleResponse{
		ID:         s.ID,
		StoreID:    s.StoreID,
		Folio:      s.Folio,
		Total:      numericToString(s.Total),
		AssignedTo: s.AssignedTo,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
	}
	if len(s.Methods) > 0 {
		if err := json.Unmarshal(s.Methods, &resp.Methods); err != nil {
			log.Printf("ERROR: decode sale methods: %v", err)
		}
	}
	return resp
}

func toSaleItemResponses(items []database.SaleItem) []saleItemResponse {
	resp := make([]saleItemResponse, len(items))
	for i, item := range items {
		resp[i] = saleItemResponse{
			ID:          item.ID,
			VariantID:   item.VariantID,
			DisplayName: item.DisplayName,
			Sku:         item.Sku,
			Quantity:    item.Quantity,
			UnitPrice:   numericToString(item.UnitPrice),
			Subtotal:    numericToString(item.Subtotal),
		}
	}
	return resp
}
