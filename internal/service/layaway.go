package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxFolioRetries = 3

// Errors returned by the layaway service.
var (
	ErrEmptyItems             = errors.New("items are required")
	ErrInvalidItemType        = errors.New("invalid tipo")
	ErrInvalidQuantity        = errors.New("cantidad must be > 0")
	ErrInvalidVariantID       = errors.New("invalid variante_id")
	ErrVariantNotFound        = errors.New("variante not found")
	ErrInvalidAlterationID    = errors.New("invalid arreglo_id")
	ErrAlterationNotFound     = errors.New("arreglo not found")
	ErrServiceDescription     = errors.New("descripcion is required for servicio items")
	ErrServicePrice           = errors.New("precio must be > 0 for servicio items")
	ErrInvalidPrice           = errors.New("invalid precio")
	ErrInvalidMeasurement     = errors.New("invalid medidas field")
	ErrCustomerName           = errors.New("cliente nombre is required")
	ErrCustomerPhone          = errors.New("cliente telefono is required")
	ErrInvalidDeliveryDate    = errors.New("invalid fecha_entrega_estimada")
	ErrInvalidInitialAmount   = errors.New("invalid abono_inicial monto")
	ErrInitialExceedsTotal    = errors.New("abono_inicial exceeds total")
	ErrLayawayNotFound        = errors.New("apartado not found")
	ErrNotEditable            = errors.New("apartado can only be edited while activo or pagado")
	ErrTotalBelowPaid         = errors.New("total cannot drop below total_abonado")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LayawayStore defines the DB methods needed to create and edit layaways.
// Satisfied by *database.Queries over a pool or an open transaction.
type LayawayStore interface {
	GetNextLayawayFolio(ctx context.Context, storeID uuid.UUID) (int32, error)
	CreateLayaway(ctx context.Context, arg database.CreateLayawayParams) (database.Layaway, error)
	GetLayawayForUpdate(ctx context.Context, id uuid.UUID) (database.Layaway, error)
	UpdateLayaway(ctx context.Context, arg database.UpdateLayawayParams) (database.Layaway, error)
	CreateLayawayItem(ctx context.Context, arg database.CreateLayawayItemParams) (database.LayawayItem, error)
	ListLayawayItems(ctx context.Context, layawayID uuid.UUID) ([]database.LayawayItem, error)
	DeleteLayawayItems(ctx context.Context, layawayID uuid.UUID) error
	GetVariantForLayaway(ctx context.Context, id uuid.UUID) (database.GetVariantForLayawayRow, error)
	GetAlteration(ctx context.Context, id uuid.UUID) (database.Alteration, error)
	GetNextInstallmentFolio(ctx context.Context, layawayID uuid.UUID) (int32, error)
	CreateInstallment(ctx context.Context, arg database.CreateInstallmentParams) (database.Installment, error)
	AddLayawayPayment(ctx context.Context, arg database.AddLayawayPaymentParams) (database.Layaway, error)
	MarkLayawayPaid(ctx context.Context, id uuid.UUID) (database.Layaway, error)
}

// NewLayawayStore creates a LayawayStore from a DBTX (pool or tx).
type NewLayawayStore func(db database.DBTX) LayawayStore

// ItemRequest is a single line item. Which fields apply depends on Type.
type ItemRequest struct {
	Type           string
	VariantID      string
	AlterationID   string
	Description    string
	Price          string
	Quantity       int32
	Measurements   map[string]string
	AlterationNote string
}

// InitialPaymentRequest is the optional abono taken at the counter when
// the layaway is opened.
type InitialPaymentRequest struct {
	Amount  string
	Methods map[string]string
	Notes   string
}

// CreateLayawayRequest is the validated input for opening a layaway.
type CreateLayawayRequest struct {
	StoreID           uuid.UUID
	CreatedBy         uuid.UUID
	AssignedTo        uuid.UUID
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     string
	CustomerNotes     string
	EstimatedDelivery string // 2006-01-02
	Items             []ItemRequest
	InitialPayment    *InitialPaymentRequest
}

// UpdateLayawayRequest replaces customer data and the item list wholesale.
type UpdateLayawayRequest struct {
	ID                uuid.UUID
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     string
	CustomerNotes     string
	EstimatedDelivery string
	Items             []ItemRequest
}

// LayawayResult is a layaway with its items and, on creation, the initial
// abono when one was taken.
type LayawayResult struct {
	Layaway     database.Layaway
	Items       []database.LayawayItem
	Installment *database.Installment
}

// LayawayService handles layaway business logic.
type LayawayService struct {
	pool     TxBeginner
	newStore NewLayawayStore
}

// NewLayawayService creates a new LayawayService.
func NewLayawayService(pool TxBeginner, newStore NewLayawayStore) *LayawayService {
	return &LayawayService{pool: pool, newStore: newStore}
}

// CreateLayaway validates, snapshots catalog prices, computes the total,
// and opens the layaway atomically, including the optional initial abono.
// Retries on folio unique constraint violations (concurrent transactions
// can read the same MAX sequence).
func (s *LayawayService) CreateLayaway(ctx context.Context, req CreateLayawayRequest) (*LayawayResult, error) {
	if req.CustomerName == "" {
		return nil, ErrCustomerName
	}
	if req.CustomerPhone == "" {
		return nil, ErrCustomerPhone
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxFolioRetries; attempt++ {
		result, err := s.createLayawayTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isFolioConflict(err, "layaways_store_id_folio_seq_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isFolioConflict checks for a unique constraint violation on the given
// folio constraint (pgconn error code 23505).
func isFolioConflict(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func (s *LayawayService) createLayawayTx(ctx context.Context, req CreateLayawayRequest) (*LayawayResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// On creation arreglo prices come from the catalog; overrides are an
	// edit-time affordance only.
	items, total, err := buildItems(ctx, store, req.Items, false)
	if err != nil {
		return nil, err
	}

	nextSeq, err := store.GetNextLayawayFolio(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("get next folio: %w", err)
	}
	folio := fmt.Sprintf("APT-%04d", nextSeq)

	estimatedDelivery, err := parseDeliveryDate(req.EstimatedDelivery)
	if err != nil {
		return nil, err
	}

	layaway, err := store.CreateLayaway(ctx, database.CreateLayawayParams{
		StoreID:           req.StoreID,
		FolioSeq:          nextSeq,
		Folio:             folio,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerEmail:     optionalText(req.CustomerEmail),
		CustomerNotes:     optionalText(req.CustomerNotes),
		EstimatedDelivery: estimatedDelivery,
		Total:             decimalToNumeric(total),
		CreatedBy:         req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create layaway: %w", err)
	}

	var inserted []database.LayawayItem
	for i, params := range items {
		params.LayawayID = layaway.ID
		params.Position = int32(i)
		item, err := store.CreateLayawayItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create layaway item: %w", err)
		}
		inserted = append(inserted, item)
	}

	var installment *database.Installment
	if req.InitialPayment != nil {
		installment, err = s.addInitialPayment(ctx, store, &layaway, total, req)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &LayawayResult{Layaway: layaway, Items: inserted, Installment: installment}, nil
}

// addInitialPayment records the abono taken at opening. The layaway row
// was just inserted by this transaction, so no extra lock is needed.
func (s *LayawayService) addInitialPayment(ctx context.Context, store LayawayStore, layaway *database.Layaway, total decimal.Decimal, req CreateLayawayRequest) (*database.Installment, error) {
	amount, err := decimal.NewFromString(req.InitialPayment.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidInitialAmount
	}
	if amount.GreaterThan(total) {
		return nil, ErrInitialExceedsTotal
	}
	methods, err := ParsePaymentMethods(req.InitialPayment.Methods, amount)
	if err != nil {
		return nil, err
	}

	assignedTo := req.AssignedTo
	if assignedTo == uuid.Nil {
		assignedTo = req.CreatedBy
	}

	installment, err := store.CreateInstallment(ctx, database.CreateInstallmentParams{
		LayawayID:  layaway.ID,
		FolioSeq:   1,
		Folio:      "AB-1",
		Amount:     decimalToNumeric(amount),
		Methods:    methods,
		Notes:      optionalText(req.InitialPayment.Notes),
		AssignedTo: assignedTo,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create installment: %w", err)
	}

	updated, err := store.AddLayawayPayment(ctx, database.AddLayawayPaymentParams{
		ID:     layaway.ID,
		Amount: decimalToNumeric(amount),
	})
	if err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}
	*layaway = updated

	if amount.GreaterThanOrEqual(total) {
		paid, err := store.MarkLayawayPaid(ctx, layaway.ID)
		if err != nil {
			return nil, fmt.Errorf("mark paid: %w", err)
		}
		*layaway = paid
	}
	return &installment, nil
}

// UpdateLayaway replaces customer data and the item list. Only activo and
// pagado records are editable; the new total may not drop below what the
// customer has already paid.
func (s *LayawayService) UpdateLayaway(ctx context.Context, req UpdateLayawayRequest) (*LayawayResult, error) {
	if req.CustomerName == "" {
		return nil, ErrCustomerName
	}
	if req.CustomerPhone == "" {
		return nil, ErrCustomerPhone
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetLayawayForUpdate(ctx, req.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLayawayNotFound
		}
		return nil, fmt.Errorf("get layaway: %w", err)
	}
	switch current.Status {
	case database.LayawayStatusActivo, database.LayawayStatusPagado:
	default:
		return nil, ErrNotEditable
	}

	items, total, err := buildItems(ctx, store, req.Items, true)
	if err != nil {
		return nil, err
	}
	if total.LessThan(numericToDecimal(current.TotalPaid)) {
		return nil, ErrTotalBelowPaid
	}

	estimatedDelivery, err := parseDeliveryDate(req.EstimatedDelivery)
	if err != nil {
		return nil, err
	}

	layaway, err := store.UpdateLayaway(ctx, database.UpdateLayawayParams{
		ID:                req.ID,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerEmail:     optionalText(req.CustomerEmail),
		CustomerNotes:     optionalText(req.CustomerNotes),
		EstimatedDelivery: estimatedDelivery,
		Total:             decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update layaway: %w", err)
	}

	if err := store.DeleteLayawayItems(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("delete layaway items: %w", err)
	}
	var inserted []database.LayawayItem
	for i, params := range items {
		params.LayawayID = req.ID
		params.Position = int32(i)
		item, err := store.CreateLayawayItem(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("create layaway item: %w", err)
		}
		inserted = append(inserted, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &LayawayResult{Layaway: layaway, Items: inserted}, nil
}

// buildItems validates the item list, resolves catalog references, and
// snapshots names and prices. allowPriceOverride lets edits re-price
// arreglo items; creation always takes the catalog's suggested price.
func buildItems(ctx context.Context, store LayawayStore, reqs []ItemRequest, allowPriceOverride bool) ([]database.CreateLayawayItemParams, decimal.Decimal, error) {
	total := decimal.Zero
	var items []database.CreateLayawayItemParams

	for i, item := range reqs {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		measurements, err := parseMeasurements(item.Measurements)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, err)
		}

		params := database.CreateLayawayItemParams{
			Quantity:       quantity,
			Measurements:   measurements,
			AlterationNote: optionalText(item.AlterationNote),
		}
		var unitPrice decimal.Decimal

		switch item.Type {
		case enum.ItemTypeProducto:
			vid, err := uuid.Parse(item.VariantID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidVariantID)
			}
			variant, err := store.GetVariantForLayaway(ctx, vid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("item[%d]: get variant: %w", i, err)
			}
			unitPrice = numericToDecimal(variant.Price)
			params.ItemType = database.ItemTypeProducto
			params.VariantID = pgtype.UUID{Bytes: vid, Valid: true}
			params.DisplayName = variant.ProductName
			params.Sku = pgtype.Text{String: variant.Sku, Valid: true}

		case enum.ItemTypeArreglo:
			aid, err := uuid.Parse(item.AlterationID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidAlterationID)
			}
			alteration, err := store.GetAlteration(ctx, aid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrAlterationNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("item[%d]: get alteration: %w", i, err)
			}
			unitPrice = numericToDecimal(alteration.SuggestedPrice)
			if allowPriceOverride && item.Price != "" {
				override, err := decimal.NewFromString(item.Price)
				if err != nil || override.IsNegative() {
					return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
				}
				unitPrice = override
			}
			params.ItemType = database.ItemTypeArreglo
			params.DisplayName = alteration.Name

		case enum.ItemTypeServicio:
			if item.Description == "" {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrServiceDescription)
			}
			price, err := decimal.NewFromString(item.Price)
			if err != nil || !price.IsPositive() {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrServicePrice)
			}
			unitPrice = price
			params.ItemType = database.ItemTypeServicio
			params.DisplayName = item.Description

		default:
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemType)
		}

		params.UnitPrice = decimalToNumeric(unitPrice)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt32(quantity)))
		items = append(items, params)
	}

	return items, total, nil
}

// parseMeasurements validates keys against the known medidas fields and
// returns the JSONB bytes. Values are opaque free text.
func parseMeasurements(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	for field := range m {
		switch field {
		case enum.MeasurementBusto, enum.MeasurementCintura, enum.MeasurementCadera,
			enum.MeasurementEspalda, enum.MeasurementLargo, enum.MeasurementManga,
			enum.MeasurementOtro:
		default:
			return nil, ErrInvalidMeasurement
		}
	}
	return json.Marshal(m)
}

func parseDeliveryDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, ErrInvalidDeliveryDate
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
