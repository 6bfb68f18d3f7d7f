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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
	"github.com/atelier-pos/api/internal/service"
)

// InventoryStore defines the database methods needed by inventory handlers.
type InventoryStore interface {
	ListStockByStore(ctx context.Context, storeID uuid.UUID) ([]database.ListStockByStoreRow, error)
	GetStock(ctx context.Context, arg database.GetStockParams) (database.StockLevel, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.StockLevel, error)
	DecrementStock(ctx context.Context, arg database.DecrementStockParams) (database.StockLevel, error)
	CreateTransfer(ctx context.Context, arg database.CreateTransferParams) (database.StockTransfer, error)
	ListTransfers(ctx context.Context, arg database.ListTransfersParams) ([]database.StockTransfer, error)
	GetVariant(ctx context.Context, id uuid.UUID) (database.ProductVariant, error)
}

// NewInventoryStore creates an InventoryStore from a DBTX (pool or tx).
type NewInventoryStore func(db database.DBTX) InventoryStore

// InventoryHandler handles the /inventario endpoints.
type InventoryHandler struct {
	store    InventoryStore
	pool     service.TxBeginner
	newStore NewInventoryStore
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore, pool service.TxBeginner, newStore NewInventoryStore) *InventoryHandler {
	return &InventoryHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted at /inventario.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/existencias", h.ListStock)
	r.Get("/existencias/{vid}", h.GetStock)
	r.Post("/existencias", h.AdjustStock)
	r.Get("/traspasos", h.ListTransfers)
	r.Post("/traspasos", h.CreateTransfer)
}

// --- Request / Response types ---

type stockResponse struct {
	VariantID   uuid.UUID `json:"variante_id"`
	Sku         string    `json:"sku"`
	ProductName string    `json:"producto"`
	Size        *string   `json:"talla"`
	Color       *string   `json:"color"`
	Quantity    int32     `json:"cantidad"`
}

type adjustStockRequest struct {
	StoreID   string `json:"tienda_id"`
	VariantID string `json:"variante_id"`
	Delta     int32  `json:"ajuste"`
}

type stockLevelResponse struct {
	StoreID   uuid.UUID `json:"tienda_id"`
	VariantID uuid.UUID `json:"variante_id"`
	Quantity  int32     `json:"cantidad"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

type createTransferRequest struct {
	FromStoreID string `json:"tienda_origen_id"`
	ToStoreID   string `json:"tienda_destino_id"`
	VariantID   string `json:"variante_id"`
	Quantity    int32  `json:"cantidad"`
	Notes       string `json:"notas"`
}

type transferResponse struct {
	ID          uuid.UUID `json:"id"`
	FromStoreID uuid.UUID `json:"tienda_origen_id"`
	ToStoreID   uuid.UUID `json:"tienda_destino_id"`
	VariantID   uuid.UUID `json:"variante_id"`
	Quantity    int32     `json:"cantidad"`
	Notes       *string   `json:"notas"`
	CreatedBy   uuid.UUID `json:"creado_por"`
	CreatedAt   time.Time `json:"creado_en"`
}

// --- Handlers ---

// ListStock handles GET /inventario/existencias?tienda_id.
func (h *InventoryHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, r.URL.Query().Get("tienda_id"))
	if !ok {
		return
	}

	rows, err := h.store.ListStockByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]stockResponse, len(rows))
	for i, row := range rows {
		resp[i] = stockResponse{
			VariantID:   row.VariantID,
			Sku:         row.Sku,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
		}
		if row.Size.Valid {
			resp[i].Size = &row.Size.String
		}
		if row.Color.Valid {
			resp[i].Color = &row.Color.String
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStock handles GET /inventario/existencias/{vid}?tienda_id: the
// counter-side availability check for a single variant. A variant with
// no stock row yet reports zero, not 404.
func (h *InventoryHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, r.URL.Query().Get("tienda_id"))
	if !ok {
		return
	}
	variantID, err := uuid.Parse(chi.URLParam(r, "vid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid variante_id"})
		return
	}

	if _, err := h.store.GetVariant(r.Context(), variantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "variante not found"})
			return
		}
		log.Printf("ERROR: get variant for stock lookup: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	level, err := h.store.GetStock(r.Context(), database.GetStockParams{
		StoreID:   storeID,
		VariantID: variantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, stockLevelResponse{
				StoreID:   storeID,
				VariantID: variantID,
				Quantity:  0,
			})
			return
		}
		log.Printf("ERROR: get stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, stockLevelResponse{
		StoreID:   level.StoreID,
		VariantID: level.VariantID,
		Quantity:  level.Quantity,
		UpdatedAt: level.UpdatedAt,
	})
}

// AdjustStock handles POST /inventario/existencias: a signed manual
// adjustment (receiving goods, damage write-off).
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "ajuste must be non-zero"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, req.StoreID)
	if !ok {
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid variante_id"})
		return
	}
	if _, err := h.store.GetVariant(r.Context(), variantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "variante not found"})
			return
		}
		log.Printf("ERROR: get variant for adjust: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	level, err := h.store.AdjustStock(r.Context(), database.AdjustStockParams{
		StoreID:   storeID,
		VariantID: variantID,
		Delta:     req.Delta,
	})
	if err != nil {
		if isCheckViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "adjustment would make stock negative"})
			return
		}
		log.Printf("ERROR: adjust stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, stockLevelResponse{
		StoreID:   level.StoreID,
		VariantID: level.VariantID,
		Quantity:  level.Quantity,
		UpdatedAt: level.UpdatedAt,
	})
}

// CreateTransfer handles POST /inventario/traspasos. The decrement at the
// origin and the increment at the destination commit as one unit.
func (h *InventoryHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "cantidad must be > 0"})
		return
	}

	fromStoreID, err := uuid.Parse(req.FromStoreID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda_origen_id"})
		return
	}
	toStoreID, err := uuid.Parse(req.ToStoreID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda_destino_id"})
		return
	}
	if fromStoreID == toStoreID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "origen and destino must differ"})
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid variante_id"})
		return
	}

	// Non-admins may only ship out of their own store.
	if !claims.CanCrossStores() && fromStoreID != claims.StoreID {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "cannot transfer from another tienda"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for transfer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	if _, err := txStore.DecrementStock(r.Context(), database.DecrementStockParams{
		StoreID:   fromStoreID,
		VariantID: variantID,
		Quantity:  req.Quantity,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "insufficient stock at origen"})
			return
		}
		log.Printf("ERROR: decrement stock for transfer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	if _, err := txStore.AdjustStock(r.Context(), database.AdjustStockParams{
		StoreID:   toStoreID,
		VariantID: variantID,
		Delta:     req.Quantity,
	}); err != nil {
		log.Printf("ERROR: increment stock for transfer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	transfer, err := txStore.CreateTransfer(r.Context(), database.CreateTransferParams{
		FromStoreID: fromStoreID,
		ToStoreID:   toStoreID,
		VariantID:   variantID,
		Quantity:    req.Quantity,
		Notes:       optionalText(req.Notes),
		CreatedBy:   claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create transfer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for transfer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbTransferToResponse(transfer))
}

// ListTransfers handles GET /inventario/traspasos.
func (h *InventoryHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
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

	transfers, err := h.store.ListTransfers(r.Context(), database.ListTransfersParams{
		StoreID: storeFilter(claims, r.URL.Query().Get("tienda_id")),
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list transfers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		resp[i] = dbTransferToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

func dbTransferToResponse(t database.StockTransfer) transferResponse {
	resp := transferResponse{
		ID:          t.ID,
		FromStoreID: t.FromStoreID,
		ToStoreID:   t.ToStoreID,
		VariantID:   t.VariantID,
		Quantity:    t.Quantity,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
	if t.Notes.Valid {
		resp.Notes = &t.Notes.String
	}
	return resp
}
