package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/atelier-pos/api/internal/auth"
	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
	"github.com/atelier-pos/api/internal/money"
	"github.com/atelier-pos/api/internal/service"
)

// LayawayServicer defines the service methods needed by layaway handlers.
// Satisfied by *service.LayawayService; narrow interface for testability.
type LayawayServicer interface {
	CreateLayaway(ctx context.Context, req service.CreateLayawayRequest) (*service.LayawayResult, error)
	UpdateLayaway(ctx context.Context, req service.UpdateLayawayRequest) (*service.LayawayResult, error)
}

// LayawayStore defines the database methods needed by layaway read and
// status handlers. Satisfied by *database.Queries; narrow interface for
// testability.
type LayawayStore interface {
	GetLayaway(ctx context.Context, id uuid.UUID) (database.Layaway, error)
	GetLayawayByFolio(ctx context.Context, arg database.GetLayawayByFolioParams) (database.Layaway, error)
	ListLayaways(ctx context.Context, arg database.ListLayawaysParams) ([]database.Layaway, error)
	ListLayawayItems(ctx context.Context, layawayID uuid.UUID) ([]database.LayawayItem, error)
	UpdateLayawayStatus(ctx context.Context, arg database.UpdateLayawayStatusParams) (database.Layaway, error)
	ListAlterations(ctx context.Context) ([]database.Alteration, error)
}

// Broadcaster pushes events to the websocket hub. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToStore(storeID uuid.UUID, event string, data interface{})
}

// LayawayHandler handles the /apartados endpoints.
type LayawayHandler struct {
	svc   LayawayServicer
	store LayawayStore
	hub   Broadcaster
}

// NewLayawayHandler creates a new LayawayHandler.
func NewLayawayHandler(svc LayawayServicer, store LayawayStore, hub Broadcaster) *LayawayHandler {
	return &LayawayHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers layaway endpoints on the given Chi router.
// Expected to be mounted at /apartados.
func (h *LayawayHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/catalogo-arreglos", h.ListAlterations)
	r.Get("/folio/{folio}", h.GetByFolio)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Put("/{id}/estado", h.UpdateStatus)
}

// --- Request / Response types ---

type customerRequest struct {
	Name  string `json:"nombre"`
	Phone string `json:"telefono"`
	Email string `json:"email"`
	Notes string `json:"notas"`
}

type layawayItemRequest struct {
	Type           string            `json:"tipo"`
	VariantID      string            `json:"variante_id"`
	AlterationID   string            `json:"arreglo_id"`
	Description    string            `json:"descripcion"`
	Price          string            `json:"precio"`
	Quantity       int32             `json:"cantidad"`
	Measurements   map[string]string `json:"medidas"`
	AlterationNote string            `json:"descripcion_arreglo"`
}

type initialPaymentRequest struct {
	Amount     string            `json:"monto"`
	Methods    map[string]string `json:"metodo_pago"`
	Notes      string            `json:"notas"`
	AssignedTo string            `json:"usuario_asignado_id"`
}

type createLayawayRequest struct {
	StoreID           string                 `json:"tienda_id"`
	Customer          customerRequest        `json:"cliente"`
	EstimatedDelivery string                 `json:"fecha_entrega_estimada"`
	Items             []layawayItemRequest   `json:"items"`
	InitialPayment    *initialPaymentRequest `json:"abono_inicial"`
}

type updateLayawayRequest struct {
	Customer          customerRequest      `json:"cliente"`
	EstimatedDelivery string               `json:"fecha_entrega_estimada"`
	Items             []layawayItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"estado"`
}

type customerResponse struct {
	Name  string  `json:"nombre"`
	Phone string  `json:"telefono"`
	Email *string `json:"email"`
	Notes *string `json:"notas"`
}

type layawayItemResponse struct {
	ID             uuid.UUID         `json:"id"`
	Type           string            `json:"tipo"`
	VariantID      *string           `json:"variante_id"`
	DisplayName    string            `json:"nombre"`
	Sku            *string           `json:"sku"`
	Quantity       int32             `json:"cantidad"`
	UnitPrice      string            `json:"precio_unitario"`
	Measurements   map[string]string `json:"medidas,omitempty"`
	AlterationNote *string           `json:"descripcion_arreglo"`
}

type layawayResponse struct {
	ID                uuid.UUID             `json:"id"`
	StoreID           uuid.UUID             `json:"tienda_id"`
	Folio             string                `json:"folio"`
	Customer          customerResponse      `json:"cliente"`
	EstimatedDelivery *string               `json:"fecha_entrega_estimada"`
	Total             string                `json:"total"`
	TotalPaid         string                `json:"total_abonado"`
	Pending           string                `json:"pendiente"`
	Status            string                `json:"estado"`
	CreatedBy         uuid.UUID             `json:"creado_por"`
	CreatedAt         time.Time             `json:"creado_en"`
	UpdatedAt         time.Time             `json:"actualizado_en"`
	Items             []layawayItemResponse `json:"items,omitempty"`
}

// layawayDetailResponse extends layawayResponse with the payment-entry
// prefill amounts for the detail screen.
type layawayDetailResponse struct {
	layawayResponse
	QuickAmounts money.QuickAmounts `json:"montos_rapidos"`
}

type layawayListResponse struct {
	Layaways []layawayResponse `json:"apartados"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type alterationResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"nombre"`
	SuggestedPrice string    `json:"precio_sugerido"`
}

// --- Handlers ---

// Create handles POST /apartados.
func (h *LayawayHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req createLayawayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	storeID, ok := resolveStoreID(w, claims, req.StoreID)
	if !ok {
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "items are required"})
		return
	}

	svcReq := service.CreateLayawayRequest{
		StoreID:           storeID,
		CreatedBy:         claims.UserID,
		CustomerName:      req.Customer.Name,
		CustomerPhone:     req.Customer.Phone,
		CustomerEmail:     req.Customer.Email,
		CustomerNotes:     req.Customer.Notes,
		EstimatedDelivery: req.EstimatedDelivery,
		Items:             toServiceItems(req.Items),
	}

	if req.InitialPayment != nil {
		assignedTo, ok := resolveAssignedTo(w, claims, req.InitialPayment.AssignedTo)
		if !ok {
			return
		}
		svcReq.AssignedTo = assignedTo
		svcReq.InitialPayment = &service.InitialPaymentRequest{
			Amount:  req.InitialPayment.Amount,
			Methods: req.InitialPayment.Methods,
			Notes:   req.InitialPayment.Notes,
		}
	}

	result, err := h.svc.CreateLayaway(r.Context(), svcReq)
	if err != nil {
		if isLayawayValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		log.Printf("ERROR: create layaway: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := dbLayawayToResponse(result.Layaway)
	resp.Items = toItemResponses(result.Items)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /apartados.
func (h *LayawayHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListLayawaysParams{
		StoreID: storeFilter(claims, r.URL.Query().Get("tienda_id")),
		Limit:   int32(limit),
		Offset:  int32(offset),
	}

	if s := r.URL.Query().Get("estado"); s != "" {
		status := database.LayawayStatus(s)
		if !isValidLayawayStatus(status) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid estado"})
			return
		}
		params.Status = database.NullLayawayStatus{LayawayStatus: status, Valid: true}
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
		// fecha_fin is inclusive on the wire; the query uses created_at < end.
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}
	if s := r.URL.Query().Get("busqueda"); s != "" {
		params.Search = pgtype.Text{String: s, Valid: true}
	}

	layaways, err := h.store.ListLayaways(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list layaways: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]layawayResponse, len(layaways))
	for i, l := range layaways {
		resp[i] = dbLayawayToResponse(l)
	}

	writeJSON(w, http.StatusOK, layawayListResponse{
		Layaways: resp,
		Limit:    limit,
		Offset:   offset,
	})
}

// Get handles GET /apartados/{id}.
func (h *LayawayHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	layawayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid apartado ID"})
		return
	}

	layaway, ok := h.fetchScoped(w, r, claims, layawayID)
	if !ok {
		return
	}

	items, err := h.store.ListLayawayItems(r.Context(), layawayID)
	if err != nil {
		log.Printf("ERROR: list layaway items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := dbLayawayToResponse(layaway)
	resp.Items = toItemResponses(items)
	pending := numericToDecimal(layaway.Total).Sub(numericToDecimal(layaway.TotalPaid))
	writeJSON(w, http.StatusOK, layawayDetailResponse{
		layawayResponse: resp,
		QuickAmounts:    money.Quick(pending),
	})
}

// GetByFolio handles GET /apartados/folio/{folio}.
func (h *LayawayHandler) GetByFolio(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	folio := chi.URLParam(r, "folio")
	if folio == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "folio is required"})
		return
	}

	// Folios repeat across stores; non-admins resolve within their own.
	scope := pgtype.UUID{}
	if !claims.CanCrossStores() {
		scope = pgtype.UUID{Bytes: claims.StoreID, Valid: true}
	}

	layaway, err := h.store.GetLayawayByFolio(r.Context(), database.GetLayawayByFolioParams{
		Folio:   folio,
		StoreID: scope,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
			return
		}
		log.Printf("ERROR: get layaway by folio: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	items, err := h.store.ListLayawayItems(r.Context(), layaway.ID)
	if err != nil {
		log.Printf("ERROR: list layaway items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := dbLayawayToResponse(layaway)
	resp.Items = toItemResponses(items)
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /apartados/{id}.
func (h *LayawayHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	layawayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid apartado ID"})
		return
	}

	var req updateLayawayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	// Scope check before the service touches anything.
	if _, ok := h.fetchScoped(w, r, claims, layawayID); !ok {
		return
	}

	result, err := h.svc.UpdateLayaway(r.Context(), service.UpdateLayawayRequest{
		ID:                layawayID,
		CustomerName:      req.Customer.Name,
		CustomerPhone:     req.Customer.Phone,
		CustomerEmail:     req.Customer.Email,
		CustomerNotes:     req.Customer.Notes,
		EstimatedDelivery: req.EstimatedDelivery,
		Items:             toServiceItems(req.Items),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLayawayNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
		case errors.Is(err, service.ErrNotEditable), errors.Is(err, service.ErrTotalBelowPaid):
			writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
		case isLayawayValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		default:
			log.Printf("ERROR: update layaway: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		}
		return
	}

	resp := dbLayawayToResponse(result.Layaway)
	resp.Items = toItemResponses(result.Items)
	h.hub.BroadcastToStore(result.Layaway.StoreID, "apartado.actualizado", resp)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PUT /apartados/{id}/estado.
func (h *LayawayHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	layawayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid apartado ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "estado is required"})
		return
	}

	newStatus := database.LayawayStatus(req.Status)
	if !isValidLayawayStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid estado"})
		return
	}

	current, ok := h.fetchScoped(w, r, claims, layawayID)
	if !ok {
		return
	}

	if err := validateStatusTransition(current.Status, newStatus); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
		return
	}

	updated, err := h.store.UpdateLayawayStatus(r.Context(), database.UpdateLayawayStatusParams{
		ID:             layawayID,
		Status:         newStatus,
		ExpectedStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the compare-and-set: another session moved the record
			// between our read and write.
			writeJSON(w, http.StatusConflict, map[string]string{"message": "estado changed, please retry"})
			return
		}
		log.Printf("ERROR: update layaway status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := dbLayawayToResponse(updated)
	h.hub.BroadcastToStore(updated.StoreID, "apartado.actualizado", resp)
	writeJSON(w, http.StatusOK, resp)
}

// ListAlterations handles GET /apartados/catalogo-arreglos.
func (h *LayawayHandler) ListAlterations(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	alterations, err := h.store.ListAlterations(r.Context())
	if err != nil {
		log.Printf("ERROR: list alterations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]alterationResponse, len(alterations))
	for i, a := range alterations {
		resp[i] = alterationResponse{
			ID:             a.ID,
			Name:           a.Name,
			SuggestedPrice: numericToString(a.SuggestedPrice),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// fetchScoped loads a layaway and enforces store visibility: non-admin
// actors only see records from their own store. Writes the error response
// itself and reports success through the bool.
func (h *LayawayHandler) fetchScoped(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id uuid.UUID) (database.Layaway, bool) {
	layaway, err := h.store.GetLayaway(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
			return database.Layaway{}, false
		}
		log.Printf("ERROR: get layaway: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return database.Layaway{}, false
	}
	if !claims.CanCrossStores() && layaway.StoreID != claims.StoreID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
		return database.Layaway{}, false
	}
	return layaway, true
}

// resolveStoreID picks the store a write lands in: admins may target any
// store via tienda_id, everyone else is pinned to their session store.
func resolveStoreID(w http.ResponseWriter, claims *auth.Claims, requested string) (uuid.UUID, bool) {
	if requested == "" || !claims.CanCrossStores() {
		return claims.StoreID, true
	}
	storeID, err := uuid.Parse(requested)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid tienda_id"})
		return uuid.Nil, false
	}
	return storeID, true
}

// storeFilter builds the list-endpoint store filter: admins may widen to
// all stores by omitting tienda_id, others always get their own.
func storeFilter(claims *auth.Claims, requested string) pgtype.UUID {
	if !claims.CanCrossStores() {
		return pgtype.UUID{Bytes: claims.StoreID, Valid: true}
	}
	if requested == "" {
		return pgtype.UUID{}
	}
	if storeID, err := uuid.Parse(requested); err == nil {
		return pgtype.UUID{Bytes: storeID, Valid: true}
	}
	return pgtype.UUID{}
}

// resolveAssignedTo determines who gets credited with a payment or sale.
// Only admins may credit someone other than themselves.
func resolveAssignedTo(w http.ResponseWriter, claims *auth.Claims, requested string) (uuid.UUID, bool) {
	if requested == "" {
		return claims.UserID, true
	}
	assignedTo, err := uuid.Parse(requested)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid usuario_asignado_id"})
		return uuid.Nil, false
	}
	if assignedTo != claims.UserID && !claims.CanAssignOthers() {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "only admins may assign another user"})
		return uuid.Nil, false
	}
	return assignedTo, true
}

func toServiceItems(items []layawayItemRequest) []service.ItemRequest {
	out := make([]service.ItemRequest, len(items))
	for i, item := range items {
		out[i] = service.ItemRequest{
			Type:           item.Type,
			VariantID:      item.VariantID,
			AlterationID:   item.AlterationID,
			Description:    item.Description,
			Price:          item.Price,
			Quantity:       item.Quantity,
			Measurements:   item.Measurements,
			AlterationNote: item.AlterationNote,
		}
	}
	return out
}

// isLayawayValidationError checks if the error is a known validation
// error from the service layer that should result in 400 Bad Request.
func isLayawayValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidItemType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidVariantID) ||
		errors.Is(err, service.ErrVariantNotFound) ||
		errors.Is(err, service.ErrInvalidAlterationID) ||
		errors.Is(err, service.ErrAlterationNotFound) ||
		errors.Is(err, service.ErrServiceDescription) ||
		errors.Is(err, service.ErrServicePrice) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidMeasurement) ||
		errors.Is(err, service.ErrCustomerName) ||
		errors.Is(err, service.ErrCustomerPhone) ||
		errors.Is(err, service.ErrInvalidDeliveryDate) ||
		errors.Is(err, service.ErrInvalidInitialAmount) ||
		errors.Is(err, service.ErrInitialExceedsTotal) ||
		errors.Is(err, service.ErrEmptyMethods) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidMethodAmount) ||
		errors.Is(err, service.ErrMethodSumMismatch)
}

func dbLayawayToResponse(l database.Layaway) layawayResponse {
	resp := layawayResponse{
		ID:      l.ID,
		StoreID: l.StoreID,
		Folio:   l.Folio,
		Customer: customerResponse{
			Name:  l.CustomerName,
			Phone: l.CustomerPhone,
		},
		Total:     numericToString(l.Total),
		TotalPaid: numericToString(l.TotalPaid),
		Pending:   numericToDecimal(l.Total).Sub(numericToDecimal(l.TotalPaid)).StringFixed(2),
		Status:    string(l.Status),
		CreatedBy: l.CreatedBy,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}

	if l.CustomerEmail.Valid {
		resp.Customer.Email = &l.CustomerEmail.String
	}
	if l.CustomerNotes.Valid {
		resp.Customer.Notes = &l.CustomerNotes.String
	}
	if l.EstimatedDelivery.Valid {
		s := l.EstimatedDelivery.Time.Format("2006-01-02")
		resp.EstimatedDelivery = &s
	}
	return resp
}

func toItemResponses(items []database.LayawayItem) []layawayItemResponse {
	resp := make([]layawayItemResponse, len(items))
	for i, item := range items {
		resp[i] = dbLayawayItemToResponse(item)
	}
	return resp
}

func dbLayawayItemToResponse(item database.LayawayItem) layawayItemResponse {
	resp := layawayItemResponse{
		ID:          item.ID,
		Type:        string(item.ItemType),
		DisplayName: item.DisplayName,
		Quantity:    item.Quantity,
		UnitPrice:   numericToString(item.UnitPrice),
	}
	if item.VariantID.Valid {
		s := uuid.UUID(item.VariantID.Bytes).String()
		resp.VariantID = &s
	}
	if item.Sku.Valid {
		resp.Sku = &item.Sku.String
	}
	if len(item.Measurements) > 0 {
		if err := json.Unmarshal(item.Measurements, &resp.Measurements); err != nil {
			log.Printf("ERROR: decode item measurements: %v", err)
		}
	}
	if item.AlterationNote.Valid {
		resp.AlterationNote = &item.AlterationNote.String
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// isValidLayawayStatus checks if the given status is a valid layaway status.
func isValidLayawayStatus(s database.LayawayStatus) bool {
	switch s {
	case database.LayawayStatusActivo,
		database.LayawayStatusPagado,
		database.LayawayStatusListo,
		database.LayawayStatusEntregado,
		database.LayawayStatusCancelado:
		return true
	}
	return false
}

// allowedTransitions defines valid explicit status transitions. activo ->
// pagado is deliberately absent: it only happens as an abono side effect.
var allowedTransitions = map[database.LayawayStatus][]database.LayawayStatus{
	database.LayawayStatusActivo: {database.LayawayStatusCancelado},
	database.LayawayStatusPagado: {database.LayawayStatusListo, database.LayawayStatusCancelado},
	database.LayawayStatusListo:  {database.LayawayStatusEntregado},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next database.LayawayStatus) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
