package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/middleware"
	"github.com/atelier-pos/api/internal/service"
)

// InstallmentStore defines the database methods needed by abono handlers.
type InstallmentStore interface {
	GetLayaway(ctx context.Context, id uuid.UUID) (database.Layaway, error)
	GetLayawayForUpdate(ctx context.Context, id uuid.UUID) (database.Layaway, error)
	GetNextInstallmentFolio(ctx context.Context, layawayID uuid.UUID) (int32, error)
	CreateInstallment(ctx context.Context, arg database.CreateInstallmentParams) (database.Installment, error)
	SumInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) (pgtype.Numeric, error)
	ListInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) ([]database.Installment, error)
	AddLayawayPayment(ctx context.Context, arg database.AddLayawayPaymentParams) (database.Layaway, error)
	MarkLayawayPaid(ctx context.Context, id uuid.UUID) (database.Layaway, error)
}

// NewInstallmentStore creates an InstallmentStore from a DBTX (pool or tx).
type NewInstallmentStore func(db database.DBTX) InstallmentStore

// InstallmentHandler handles the abono endpoints.
type InstallmentHandler struct {
	store    InstallmentStore
	pool     service.TxBeginner
	newStore NewInstallmentStore
	hub      Broadcaster
}

// NewInstallmentHandler creates a new InstallmentHandler.
func NewInstallmentHandler(store InstallmentStore, pool service.TxBeginner, newStore NewInstallmentStore, hub Broadcaster) *InstallmentHandler {
	return &InstallmentHandler{store: store, pool: pool, newStore: newStore, hub: hub}
}

// RegisterRoutes registers abono endpoints on the given Chi router.
// Expected to be registered alongside the layaway routes at /apartados.
func (h *InstallmentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/abono", h.Add)
	r.Get("/{id}/abonos", h.List)
}

// --- Request / Response types ---

type addInstallmentRequest struct {
	Amount     string            `json:"monto"`
	Methods    map[string]string `json:"metodo_pago"`
	Notes      string            `json:"notas"`
	AssignedTo string            `json:"usuario_asignado_id"`
}

type installmentResponse struct {
	ID         uuid.UUID         `json:"id"`
	LayawayID  uuid.UUID         `json:"apartado_id"`
	Folio      string            `json:"folio_abono"`
	Amount     string            `json:"monto"`
	Methods    map[string]string `json:"metodo_pago"`
	Notes      *string           `json:"notas"`
	AssignedTo uuid.UUID         `json:"usuario_asignado_id"`
	CreatedBy  uuid.UUID         `json:"creado_por"`
	CreatedAt  time.Time         `json:"creado_en"`
}

// --- Handlers ---

// Add handles POST /apartados/{id}/abono.
//
// The transaction begins BEFORE the record is read: two concurrent abonos
// validated against the same snapshot could otherwise both pass and
// overpay the layaway. The row lock serializes them; the loser re-checks
// against the authoritative sums and gets a 409.
func (h *InstallmentHandler) Add(w http.ResponseWriter, r *http.Request) {
	layawayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid apartado ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	var req addInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "monto is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "monto must be positive"})
		return
	}

	methods, err := service.ParsePaymentMethods(req.Methods, amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	assignedTo, ok := resolveAssignedTo(w, claims, req.AssignedTo)
	if !ok {
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for add installment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	layaway, err := txStore.GetLayawayForUpdate(r.Context(), layawayID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
			return
		}
		log.Printf("ERROR: get layaway for add installment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	if !claims.CanCrossStores() && layaway.StoreID != claims.StoreID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
		return
	}

	switch layaway.Status {
	case database.LayawayStatusCancelado:
		writeJSON(w, http.StatusConflict, map[string]string{"message": "cannot add abono to a cancelled apartado"})
		return
	case database.LayawayStatusEntregado:
		writeJSON(w, http.StatusConflict, map[string]string{"message": "cannot add abono to a delivered apartado"})
		return
	}

	// Re-derive the paid total from the ledger rows rather than trusting
	// the cached column.
	paidSum, err := txStore.SumInstallmentsByLayaway(r.Context(), layawayID)
	if err != nil {
		log.Printf("ERROR: sum installments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	totalPaid := numericToDecimal(paidSum)
	total := numericToDecimal(layaway.Total)

	if totalPaid.GreaterThanOrEqual(total) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "apartado is already fully paid"})
		return
	}
	if totalPaid.Add(amount).GreaterThan(total) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "abono exceeds pending balance"})
		return
	}

	nextSeq, err := txStore.GetNextInstallmentFolio(r.Context(), layawayID)
	if err != nil {
		log.Printf("ERROR: get next installment folio: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	installment, err := txStore.CreateInstallment(r.Context(), database.CreateInstallmentParams{
		LayawayID:  layawayID,
		FolioSeq:   nextSeq,
		Folio:      fmt.Sprintf("AB-%d", nextSeq),
		Amount:     decimalToNumeric(amount),
		Methods:    methods,
		Notes:      optionalText(req.Notes),
		AssignedTo: assignedTo,
		CreatedBy:  claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create installment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	updated, err := txStore.AddLayawayPayment(r.Context(), database.AddLayawayPaymentParams{
		ID:     layawayID,
		Amount: decimalToNumeric(amount),
	})
	if err != nil {
		log.Printf("ERROR: add layaway payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	// Settle: flip activo -> pagado when the ledger covers the total.
	if totalPaid.Add(amount).GreaterThanOrEqual(total) && updated.Status == database.LayawayStatusActivo {
		updated, err = txStore.MarkLayawayPaid(r.Context(), layawayID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: mark layaway paid: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for add installment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	layawayResp := dbLayawayToResponse(updated)
	installmentResp := dbInstallmentToResponse(installment)
	h.hub.BroadcastToStore(updated.StoreID, "abono.registrado", map[string]interface{}{
		"abono":    installmentResp,
		"apartado": layawayResp,
	})

	// The response carries both so clients never derive totals themselves.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"abono":    installmentResp,
		"apartado": layawayResp,
	})
}

// List handles GET /apartados/{id}/abonos. History is newest first.
func (h *InstallmentHandler) List(w http.ResponseWriter, r *http.Request) {
	layawayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid apartado ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
		return
	}

	layaway, err := h.store.GetLayaway(r.Context(), layawayID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
			return
		}
		log.Printf("ERROR: get layaway for list installments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}
	if !claims.CanCrossStores() && layaway.StoreID != claims.StoreID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "apartado not found"})
		return
	}

	installments, err := h.store.ListInstallmentsByLayaway(r.Context(), layawayID)
	if err != nil {
		log.Printf("ERROR: list installments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
		return
	}

	resp := make([]installmentResponse, len(installments))
	for i, a := range installments {
		resp[i] = dbInstallmentToResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbInstallmentToResponse(a database.Installment) installmentResponse {
	resp := installmentResponse{
		ID:         a.ID,
		LayawayID:  a.LayawayID,
		Folio:      a.Folio,
		Amount:     numericToString(a.Amount),
		AssignedTo: a.AssignedTo,
		CreatedBy:  a.CreatedBy,
		CreatedAt:  a.CreatedAt,
	}
	if len(a.Methods) > 0 {
		if err := json.Unmarshal(a.Methods, &resp.Methods); err != nil {
			log.Printf("ERROR: decode installment methods: %v", err)
		}
	}
	if a.Notes.Valid {
		resp.Notes = &a.Notes.String
	}
	return resp
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
