package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/handler"
)

// mockInstallmentStore is a map-backed fake: the ledger and the cached
// totals behave like the real queries so the settle logic is exercised
// end to end.
type mockInstallmentStore struct {
	layaways     map[uuid.UUID]database.Layaway
	installments map[uuid.UUID][]database.Installment
}

func newMockInstallmentStore() *mockInstallmentStore {
	return &mockInstallmentStore{
		layaways:     make(map[uuid.UUID]database.Layaway),
		installments: make(map[uuid.UUID][]database.Installment),
	}
}

func (m *mockInstallmentStore) GetLayaway(ctx context.Context, id uuid.UUID) (database.Layaway, error) {
	l, ok := m.layaways[id]
	if !ok {
		return database.Layaway{}, pgx.ErrNoRows
	}
	return l, nil
}

func (m *mockInstallmentStore) GetLayawayForUpdate(ctx context.Context, id uuid.UUID) (database.Layaway, error) {
	return m.GetLayaway(ctx, id)
}

func (m *mockInstallmentStore) GetNextInstallmentFolio(ctx context.Context, layawayID uuid.UUID) (int32, error) {
	return int32(len(m.installments[layawayID]) + 1), nil
}

func (m *mockInstallmentStore) CreateInstallment(ctx context.Context, arg database.CreateInstallmentParams) (database.Installment, error) {
	installment := database.Installment{
		ID:         uuid.New(),
		LayawayID:  arg.LayawayID,
		FolioSeq:   arg.FolioSeq,
		Folio:      arg.Folio,
		Amount:     arg.Amount,
		Methods:    arg.Methods,
		Notes:      arg.Notes,
		AssignedTo: arg.AssignedTo,
		CreatedBy:  arg.CreatedBy,
		CreatedAt:  time.Now(),
	}
	m.installments[arg.LayawayID] = append(m.installments[arg.LayawayID], installment)
	return installment, nil
}

func (m *mockInstallmentStore) SumInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) (pgtype.Numeric, error) {
	sum := decimal.Zero
	for _, a := range m.installments[layawayID] {
		sum = sum.Add(numericAsDecimal(a.Amount))
	}
	return testNumeric(sum.StringFixed(2)), nil
}

func (m *mockInstallmentStore) ListInstallmentsByLayaway(ctx context.Context, layawayID uuid.UUID) ([]database.Installment, error) {
	ledger := m.installments[layawayID]
	out := make([]database.Installment, len(ledger))
	for i, a := range ledger {
		out[len(ledger)-1-i] = a // Newest first
	}
	return out, nil
}

func (m *mockInstallmentStore) AddLayawayPayment(ctx context.Context, arg database.AddLayawayPaymentParams) (database.Layaway, error) {
	l, ok := m.layaways[arg.ID]
	if !ok {
		return database.Layaway{}, pgx.ErrNoRows
	}
	newPaid := numericAsDecimal(l.TotalPaid).Add(numericAsDecimal(arg.Amount))
	l.TotalPaid = testNumeric(newPaid.StringFixed(2))
	m.layaways[arg.ID] = l
	return l, nil
}

func (m *mockInstallmentStore) MarkLayawayPaid(ctx context.Context, id uuid.UUID) (database.Layaway, error) {
	l, ok := m.layaways[id]
	if !ok || l.Status != database.LayawayStatusActivo {
		return database.Layaway{}, pgx.ErrNoRows
	}
	l.Status = database.LayawayStatusPagado
	m.layaways[id] = l
	return l, nil
}

// seedLedger records an existing abono and bumps the cached total the way
// the real queries would have.
func (m *mockInstallmentStore) seedLedger(layawayID uuid.UUID, amount string) {
	seq := int32(len(m.installments[layawayID]) + 1)
	m.installments[layawayID] = append(m.installments[layawayID], database.Installment{
		ID:        uuid.New(),
		LayawayID: layawayID,
		FolioSeq:  seq,
		Folio:     "AB-" + string(rune('0'+seq)),
		Amount:    testNumeric(amount),
		Methods:   []byte(`{"efectivo": "` + amount + `"}`),
		CreatedAt: time.Now(),
	})
	l := m.layaways[layawayID]
	newPaid := numericAsDecimal(l.TotalPaid).Add(mustDecimal(amount))
	l.TotalPaid = testNumeric(newPaid.StringFixed(2))
	m.layaways[layawayID] = l
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newInstallmentHandler(store *mockInstallmentStore, hub *mockHub) *handler.InstallmentHandler {
	pool := &mockPool{}
	newStore := func(db database.DBTX) handler.InstallmentStore { return store }
	return handler.NewInstallmentHandler(store, pool, newStore, hub)
}

// --- Add tests ---

func TestAddInstallment_Partial(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	hub := &mockHub{}
	router := newApartadosRouter(newInstallmentHandler(store, hub))

	body := `{"monto": "200", "metodo_pago": {"efectivo": "200"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	abono, ok := resp["abono"].(map[string]interface{})
	if !ok {
		t.Fatalf("abono missing from response: %v", resp)
	}
	if abono["folio_abono"] != "AB-1" {
		t.Errorf("folio_abono: got %v, want AB-1", abono["folio_abono"])
	}
	if abono["monto"] != "200.00" {
		t.Errorf("monto: got %v, want 200.00", abono["monto"])
	}

	apartado, ok := resp["apartado"].(map[string]interface{})
	if !ok {
		t.Fatalf("apartado missing from response: %v", resp)
	}
	if apartado["total_abonado"] != "200.00" {
		t.Errorf("total_abonado: got %v, want 200.00", apartado["total_abonado"])
	}
	if apartado["pendiente"] != "300.00" {
		t.Errorf("pendiente: got %v, want 300.00", apartado["pendiente"])
	}
	if apartado["estado"] != "activo" {
		t.Errorf("estado: got %v, want activo (partial payment)", apartado["estado"])
	}

	if len(hub.events) != 1 || hub.events[0].event != "abono.registrado" {
		t.Errorf("expected one abono.registrado broadcast, got %v", hub.events)
	}
}

func TestAddInstallment_SettlesLayaway(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	store.seedLedger(layaway.ID, "300.00")
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "200", "metodo_pago": {"tarjeta": "200"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	apartado := resp["apartado"].(map[string]interface{})
	if apartado["estado"] != "pagado" {
		t.Errorf("estado: got %v, want pagado (ledger covers total)", apartado["estado"])
	}
	if apartado["pendiente"] != "0.00" {
		t.Errorf("pendiente: got %v, want 0.00", apartado["pendiente"])
	}
	abono := resp["abono"].(map[string]interface{})
	if abono["folio_abono"] != "AB-2" {
		t.Errorf("folio_abono: got %v, want AB-2", abono["folio_abono"])
	}
}

func TestAddInstallment_ExceedsPendingBalance(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	store.seedLedger(layaway.ID, "300.00")
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "300", "metodo_pago": {"efectivo": "300"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409 (body: %s)", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["message"] != "abono exceeds pending balance" {
		t.Errorf("message: got %v, want 'abono exceeds pending balance'", resp["message"])
	}
	if len(store.installments[layaway.ID]) != 1 {
		t.Errorf("rejected abono must not be recorded, ledger has %d entries", len(store.installments[layaway.ID]))
	}
}

func TestAddInstallment_AlreadyFullyPaid(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusPagado, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	store.seedLedger(layaway.ID, "500.00")
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "50", "metodo_pago": {"efectivo": "50"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409 (body: %s)", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["message"] != "apartado is already fully paid" {
		t.Errorf("message: got %v, want 'apartado is already fully paid'", resp["message"])
	}
}

func TestAddInstallment_TerminalStatuses(t *testing.T) {
	for _, status := range []database.LayawayStatus{
		database.LayawayStatusCancelado,
		database.LayawayStatusEntregado,
	} {
		claims := vendorClaims(uuid.New())
		layaway := testLayaway(claims.StoreID, status, "500.00", "0")

		store := newMockInstallmentStore()
		store.layaways[layaway.ID] = layaway
		router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

		body := `{"monto": "100", "metodo_pago": {"efectivo": "100"}}`
		rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
		if rr.Code != http.StatusConflict {
			t.Errorf("status %s: got %d, want 409", status, rr.Code)
		}
	}
}

func TestAddInstallment_MethodSumMismatch(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "200", "metodo_pago": {"efectivo": "100", "tarjeta": "50"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400 (body: %s)", rr.Code, rr.Body.String())
	}
}

func TestAddInstallment_UnknownMethod(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "200", "metodo_pago": {"cheque": "200"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestAddInstallment_InvalidAmount(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	bodies := []string{
		`{"metodo_pago": {"efectivo": "100"}}`,
		`{"monto": "0", "metodo_pago": {"efectivo": "0"}}`,
		`{"monto": "-50", "metodo_pago": {"efectivo": "-50"}}`,
	}
	for _, body := range bodies {
		rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want 400", body, rr.Code)
		}
	}
}

func TestAddInstallment_NotFound(t *testing.T) {
	router := newApartadosRouter(newInstallmentHandler(newMockInstallmentStore(), &mockHub{}))

	body := `{"monto": "100", "metodo_pago": {"efectivo": "100"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+uuid.New().String()+"/abono", strings.NewReader(body), vendorClaims(uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestAddInstallment_CrossStoreMasked(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(uuid.New(), database.LayawayStatusActivo, "500.00", "0") // Different store

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "100", "metodo_pago": {"efectivo": "100"}}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404 (existence masked)", rr.Code)
	}
}

func TestAddInstallment_VendorCannotAssignOthers(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "100", "metodo_pago": {"efectivo": "100"}, "usuario_asignado_id": "` + uuid.New().String() + `"}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403 (body: %s)", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["message"] != "only admins may assign another user" {
		t.Errorf("message: got %v", resp["message"])
	}
}

func TestAddInstallment_AdminAssignsOther(t *testing.T) {
	claims := adminClaims()
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")
	colleague := uuid.New()

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	body := `{"monto": "100", "metodo_pago": {"efectivo": "100"}, "usuario_asignado_id": "` + colleague.String() + `"}`
	rr := doAuthRequest(t, router, http.MethodPost, "/apartados/"+layaway.ID.String()+"/abono", strings.NewReader(body), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	abono := resp["abono"].(map[string]interface{})
	if abono["usuario_asignado_id"] != colleague.String() {
		t.Errorf("usuario_asignado_id: got %v, want %s", abono["usuario_asignado_id"], colleague)
	}
}

// --- List tests ---

func TestListInstallments_NewestFirst(t *testing.T) {
	claims := vendorClaims(uuid.New())
	layaway := testLayaway(claims.StoreID, database.LayawayStatusActivo, "500.00", "0")

	store := newMockInstallmentStore()
	store.layaways[layaway.ID] = layaway
	store.seedLedger(layaway.ID, "100.00")
	store.seedLedger(layaway.ID, "200.00")
	router := newApartadosRouter(newInstallmentHandler(store, &mockHub{}))

	rr := doAuthRequest(t, router, http.MethodGet, "/apartados/"+layaway.ID.String()+"/abonos", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("abonos: got %d, want 2", len(resp))
	}
	if resp[0]["monto"] != "200.00" {
		t.Errorf("first entry monto: got %v, want 200.00 (newest first)", resp[0]["monto"])
	}
	if resp[1]["monto"] != "100.00" {
		t.Errorf("second entry monto: got %v, want 100.00", resp[1]["monto"])
	}
}

func TestListInstallments_NotFound(t *testing.T) {
	router := newApartadosRouter(newInstallmentHandler(newMockInstallmentStore(), &mockHub{}))

	rr := doAuthRequest(t, router, http.MethodGet, "/apartados/"+uuid.New().String()+"/abonos", nil, vendorClaims(uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}
