package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelier-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Errors returned by the sale service.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
)

// SaleStore defines the DB methods needed to check out a sale.
// Satisfied by *database.Queries over a pool or an open transaction.
type SaleStore interface {
	GetNextSaleFolio(ctx context.Context, storeID uuid.UUID) (int32, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	GetVariantForLayaway(ctx context.Context, id uuid.UUID) (database.GetVariantForLayawayRow, error)
	DecrementStock(ctx context.Context, arg database.DecrementStockParams) (database.StockLevel, error)
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
type NewSaleStore func(db database.DBTX) SaleStore

// SaleItemRequest is a single line on the ticket.
type SaleItemRequest struct {
	VariantID string
	Quantity  int32
}

// CreateSaleRequest is the validated input for a counter sale.
type CreateSaleRequest struct {
	StoreID    uuid.UUID
	CreatedBy  uuid.UUID
	AssignedTo uuid.UUID
	Items      []SaleItemRequest
	Methods    map[string]string
}

// SaleResult is the created sale with its lines.
type SaleResult struct {
	Sale  database.Sale
	Items []database.SaleItem
}

// SaleService handles checkout business logic.
type SaleService struct {
	pool     TxBeginner
	newStore NewSaleStore
}

// NewSaleService creates a new SaleService.
func NewSaleService(pool TxBeginner, newStore NewSaleStore) *SaleService {
	return &SaleService{pool: pool, newStore: newStore}
}

// CreateSale snapshots prices, decrements stock, and records the sale in
// one transaction. Retries on folio unique constraint violations.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxFolioRetries; attempt++ {
		result, err := s.createSaleTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isFolioConflict(err, "sales_store_id_folio_seq_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *SaleService) createSaleTx(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	type line struct {
		params database.CreateSaleItemParams
	}

	total := decimal.Zero
	var lines []line
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		vid, err := uuid.Parse(item.VariantID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidVariantID)
		}
		variant, err := store.GetVariantForLayaway(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get variant: %w", i, err)
		}

		if _, err := store.DecrementStock(ctx, database.DecrementStockParams{
			StoreID:   req.StoreID,
			VariantID: vid,
			Quantity:  item.Quantity,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInsufficientStock)
			}
			return nil, fmt.Errorf("item[%d]: decrement stock: %w", i, err)
		}

		unitPrice := numericToDecimal(variant.Price)
		subtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(subtotal)
		lines = append(lines, line{params: database.CreateSaleItemParams{
			VariantID:   vid,
			DisplayName: variant.ProductName,
			Sku:         variant.Sku,
			Quantity:    item.Quantity,
			UnitPrice:   decimalToNumeric(unitPrice),
			Subtotal:    decimalToNumeric(subtotal),
		}})
	}

	methods, err := ParsePaymentMethods(req.Methods, total)
	if err != nil {
		return nil, err
	}

	nextSeq, err := store.GetNextSaleFolio(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("get next folio: %w", err)
	}

	assignedTo := req.AssignedTo
	if assignedTo == uuid.Nil {
		assignedTo = req.CreatedBy
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		StoreID:    req.StoreID,
		FolioSeq:   nextSeq,
		Folio:      fmt.Sprintf("VTA-%04d", nextSeq),
		Total:      decimalToNumeric(total),
		Methods:    methods,
		AssignedTo: assignedTo,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	var items []database.SaleItem
	for _, ln := range lines {
		ln.params.SaleID = sale.ID
		item, err := store.CreateSaleItem(ctx, ln.params)
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SaleResult{Sale: sale, Items: items}, nil
}
