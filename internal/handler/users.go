package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/enum"
	"github.com/atelier-pos/api/internal/middleware"
)

// UserStore defines the database methods needed by user admin handlers.
type UserStore interface {
	ListUsersByStore(ctx context.Context, storeID uuid.UUID) ([]database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	SoftDeleteUser(ctx context.Context, arg database.SoftDeleteUserParams) (uuid.UUID, error)
}

// UserHandler handles the /usuarios endpoints. All routes sit behind
// RequireRole(ADMIN) in the router.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers user admin endpoints on the given Chi router.
// Expected to be mounted at /usuarios.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createUserRequest struct {
	StoreID  string `json:"tienda_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"nombre_completo"`
	Role     string `json:"rol"`
	Pin      string `json:"pin"`
}

type updateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"nombre_completo"`
	Role     string `json:"rol"`
	Pin      string `json:"pin"`
}

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// --- Handlers ---

// List handles GET /usuarios?tienda_id.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, r.URL.Query().Get("tienda_id"))
	if !ok {
		return
	}

	users, err := h.store.ListUsersByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = dbUserToResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /usuarios.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email, password and nombre_completo are required"})
		return
	}
	if !isValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid rol"})
		return
	}
	if req.Pin != "" && !pinPattern.MatchString(req.Pin) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "pin must be 4-6 digits"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, req.StoreID)
	if !ok {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		StoreID:        storeID,
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
		Pin:            optionalText(req.Pin),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "email already exists"})
			return
		}
		log.Printf("ERROR: create user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbUserToResponse(user))
}

// Update handles PUT /usuarios/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid usuario ID"})
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if req.Email == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and nombre_completo are required"})
		return
	}
	if !isValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid rol"})
		return
	}
	if req.Pin != "" && !pinPattern.MatchString(req.Pin) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "pin must be 4-6 digits"})
		return
	}

	current, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "usuario not found"})
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	user, err := h.store.UpdateUser(r.Context(), database.UpdateUserParams{
		ID:       userID,
		StoreID:  current.StoreID,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		Pin:      optionalText(req.Pin),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "usuario not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "email already exists"})
			return
		}
		log.Printf("ERROR: update user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbUserToResponse(user))
}

// Delete handles DELETE /usuarios/{id} (soft delete).
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid usuario ID"})
		return
	}

	if userID == claims.UserID {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "cannot delete your own account"})
		return
	}

	current, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "usuario not found"})
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	if _, err := h.store.SoftDeleteUser(r.Context(), database.SoftDeleteUserParams{
		ID:      userID,
		StoreID: current.StoreID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "usuario not found"})
			return
		}
		log.Printf("ERROR: delete user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func isValidRole(role string) bool {
	switch role {
	case enum.UserRoleAdmin, enum.UserRoleVendedor:
		return true
	}
	return false
}
