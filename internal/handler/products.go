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
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariant, error)
	GetVariantByCode(ctx context.Context, code string) (database.ProductVariant, error)
}

// ProductHandler handles the /productos endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted at /productos.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/codigo/{codigo}", h.GetByCode)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	Name     string `json:"nombre"`
	Category string `json:"categoria"`
}

type productResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"nombre"`
	Category  *string   `json:"categoria"`
	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

type productListResponse struct {
	Products []productResponse `json:"productos"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// productDetailResponse extends productResponse with its variants.
type productDetailResponse struct {
	productResponse
	Variants []variantResponse `json:"variantes"`
}

// --- Handlers ---

// List handles GET /productos.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListProductsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("busqueda"); s != "" {
		params.Search = pgtype.Text{String: s, Valid: true}
	}

	products, err := h.store.ListProducts(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p)
	}
	writeJSON(w, http.StatusOK, productListResponse{
		Products: resp,
		Limit:    limit,
		Offset:   offset,
	})
}

// Get handles GET /productos/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid producto ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "producto not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	variants, err := h.store.ListVariantsByProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: list variants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	variantResps := make([]variantResponse, len(variants))
	for i, v := range variants {
		variantResps[i] = dbVariantToResponse(v)
	}
	writeJSON(w, http.StatusOK, productDetailResponse{
		productResponse: dbProductToResponse(product),
		Variants:        variantResps,
	})
}

// GetByCode handles GET /productos/codigo/{codigo}: SKU or barcode lookup
// for the register scanner.
func (h *ProductHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	code := chi.URLParam(r, "codigo")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "codigo is required"})
		return
	}

	variant, err := h.store.GetVariantByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "variante not found"})
			return
		}
		log.Printf("ERROR: get variant by code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbVariantToResponse(variant))
}

// Create handles POST /productos.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "nombre is required"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:     req.Name,
		Category: optionalText(req.Category),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbProductToResponse(product))
}

// Update handles PUT /productos/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid producto ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "nombre is required"})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:       productID,
		Name:     req.Name,
		Category: optionalText(req.Category),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "producto not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

// Delete handles DELETE /productos/{id} (soft delete).
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid producto ID"})
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "producto not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func dbProductToResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Category.Valid {
		resp.Category = &p.Category.String
	}
	return resp
}
