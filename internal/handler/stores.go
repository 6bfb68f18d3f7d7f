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

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
)

// StoreStore defines the database methods needed by store admin handlers.
type StoreStore interface {
	ListStores(ctx context.Context) ([]database.Store, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	CreateStore(ctx context.Context, arg database.CreateStoreParams) (database.Store, error)
	UpdateStore(ctx context.Context, arg database.UpdateStoreParams) (database.Store, error)
	SoftDeleteStore(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// StoreHandler handles the /tiendas endpoints. Reads are open to any
// authenticated user (the SPA needs the roster for pickers); writes sit
// behind RequireRole(ADMIN) in the router.
type StoreHandler struct {
	store StoreStore
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(store StoreStore) *StoreHandler {
	return &StoreHandler{store: store}
}

// --- Request / Response types ---

type storeRequest struct {
	Name    string `json:"nombre"`
	Address string `json:"direccion"`
	Phone   string `json:"telefono"`
}

type storeResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"nombre"`
	Address   *string   `json:"direccion"`
	Phone     *string   `json:"telefono"`
	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

// --- Handlers ---

// List handles GET /tiendas.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	stores, err := h.store.ListStores(r.Context())
	if err != nil {
		log.Printf("ERROR: list stores: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]storeResponse, len(stores))
	for i, s := range stores {
		resp[i] = dbStoreToResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tiendas/{id}.
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda ID"})
		return
	}

	store, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "tienda not found"})
			return
		}
		log.Printf("ERROR: get store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbStoreToResponse(store))
}

// Create handles POST /tiendas.
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "nombre is required"})
		return
	}

	store, err := h.store.CreateStore(r.Context(), database.CreateStoreParams{
		Name:    req.Name,
		Address: optionalText(req.Address),
		Phone:   optionalText(req.Phone),
	})
	if err != nil {
		log.Printf("ERROR: create store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbStoreToResponse(store))
}

// Update handles PUT /tiendas/{id}.
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda ID"})
		return
	}

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "nombre is required"})
		return
	}

	store, err := h.store.UpdateStore(r.Context(), database.UpdateStoreParams{
		ID:      storeID,
		Name:    req.Name,
		Address: optionalText(req.Address),
		Phone:   optionalText(req.Phone),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "tienda not found"})
			return
		}
		log.Printf("ERROR: update store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbStoreToResponse(store))
}

// Delete handles DELETE /tiendas/{id} (soft delete).
func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda ID"})
		return
	}

	if storeID == claims.StoreID {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "cannot delete your own tienda"})
		return
	}

	if _, err := h.store.SoftDeleteStore(r.Context(), storeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "tienda not found"})
			return
		}
		log.Printf("ERROR: delete store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func dbStoreToResponse(s database.Store) storeResponse {
	resp := storeResponse{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Address.Valid {
		resp.Address = &s.Address.String
	}
	if s.Phone.Valid {
		resp.Phone = &s.Phone.String
	}
	return resp
}
