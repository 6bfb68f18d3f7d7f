package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
)

// VariantStore defines the database methods needed by variant handlers.
type VariantStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariant, error)
	GetVariant(ctx context.Context, id uuid.UUID) (database.ProductVariant, error)
	CreateVariant(ctx context.Context, arg database.CreateVariantParams) (database.ProductVariant, error)
	UpdateVariant(ctx context.Context, arg database.UpdateVariantParams) (database.ProductVariant, error)
	SoftDeleteVariant(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// VariantHandler handles the /productos/{pid}/variantes endpoints.
type VariantHandler struct {
	store VariantStore
}

// NewVariantHandler creates a new VariantHandler.
func NewVariantHandler(store VariantStore) *VariantHandler {
	return &VariantHandler{store: store}
}

// RegisterRoutes registers variant endpoints on the given Chi router.
// Expected to be mounted at /productos/{pid}/variantes.
func (h *VariantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type variantRequest struct {
	Sku     string `json:"sku"`
	Barcode string `json:"codigo_barras"`
	Size    string `json:"talla"`
	Color   string `json:"color"`
	Price   string `json:"precio"`
}

type variantResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"producto_id"`
	Sku       string    `json:"sku"`
	Barcode   *string   `json:"codigo_barras"`
	Size      *string   `json:"talla"`
	Color     *string   `json:"color"`
	Price     string    `json:"precio"`
	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

// --- Handlers ---

// List handles GET /productos/{pid}/variantes.
func (h *VariantHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	productID, ok := h.parseProduct(w, r)
	if !ok {
		return
	}

	variants, err := h.store.ListVariantsByProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: list variants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]variantResponse, len(variants))
	for i, v := range variants {
		resp[i] = dbVariantToResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /productos/{pid}/variantes.
func (h *VariantHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	productID, ok := h.parseProduct(w, r)
	if !ok {
		return
	}

	var req variantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	price, ok := parseVariantRequest(w, &req)
	if !ok {
		return
	}

	variant, err := h.store.CreateVariant(r.Context(), database.CreateVariantParams{
		ProductID: productID,
		Sku:       req.Sku,
		Barcode:   optionalText(req.Barcode),
		Size:      optionalText(req.Size),
		Color:     optionalText(req.Color),
		Price:     decimalToNumeric(price),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "sku already exists"})
			return
		}
		log.Printf("ERROR: create variant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbVariantToResponse(variant))
}

// Update handles PUT /productos/{pid}/variantes/{id}.
func (h *VariantHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	if _, ok := h.parseProduct(w, r); !ok {
		return
	}

	variantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid variante ID"})
		return
	}

	var req variantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	price, ok := parseVariantRequest(w, &req)
	if !ok {
		return
	}

	variant, err := h.store.UpdateVariant(r.Context(), database.UpdateVariantParams{
		ID:      variantID,
		Sku:     req.Sku,
		Barcode: optionalText(req.Barcode),
		Size:    optionalText(req.Size),
		Color:   optionalText(req.Color),
		Price:   decimalToNumeric(price),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "variante not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "sku already exists"})
			return
		}
		log.Printf("ERROR: update variant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbVariantToResponse(variant))
}

// Delete handles DELETE /productos/{pid}/variantes/{id} (soft delete).
func (h *VariantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	if _, ok := h.parseProduct(w, r); !ok {
		return
	}

	variantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid variante ID"})
		return
	}

	if _, err := h.store.SoftDeleteVariant(r.Context(), variantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "variante not found"})
			return
		}
		log.Printf("ERROR: delete variant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// parseProduct resolves the {pid} URL param and verifies the product
// exists, writing the error response on failure.
func (h *VariantHandler) parseProduct(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid producto ID"})
		return uuid.Nil, false
	}
	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "producto not found"})
			return uuid.Nil, false
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return uuid.Nil, false
	}
	return productID, true
}

func parseVariantRequest(w http.ResponseWriter, req *variantRequest) (decimal.Decimal, bool) {
	if req.Sku == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "sku is required"})
		return decimal.Zero, false
	}
	if req.Price == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "precio is required"})
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid precio"})
		return decimal.Zero, false
	}
	return price, true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func dbVariantToResponse(v database.ProductVariant) variantResponse {
	resp := variantResponse{
		ID:        v.ID,
		ProductID: v.ProductID,
		Sku:       v.Sku,
		Price:     numericToString(v.Price),
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	if v.Barcode.Valid {
		resp.Barcode = &v.Barcode.String
	}
	if v.Size.Valid {
		resp.Size = &v.Size.String
	}
	if v.Color.Valid {
		resp.Color = &v.Color.String
	}
	return resp
}
