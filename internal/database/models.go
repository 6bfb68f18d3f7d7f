package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// LayawayStatus is the layaway state machine. Values are the Spanish
// wire strings shown to users; the DB CHECK constraint enforces the set.
type LayawayStatus string

const (
	LayawayStatusActivo    LayawayStatus = "activo"
	LayawayStatusPagado    LayawayStatus = "pagado"
	LayawayStatusListo     LayawayStatus = "listo"
	LayawayStatusEntregado LayawayStatus = "entregado"
	LayawayStatusCancelado LayawayStatus = "cancelado"
)

// NullLayawayStatus carries an optional status filter.
type NullLayawayStatus struct {
	LayawayStatus LayawayStatus
	Valid         bool
}

// ItemType discriminates the three line-item variants.
type ItemType string

const (
	ItemTypeProducto ItemType = "producto"
	ItemTypeArreglo  ItemType = "arreglo"
	ItemTypeServicio ItemType = "servicio"
)

type Store struct {
	ID        uuid.UUID
	Name      string
	Address   pgtype.Text
	Phone     pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Product struct {
	ID        uuid.UUID
	Name      string
	Category  pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductVariant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Sku       string
	Barcode   pgtype.Text
	Size      pgtype.Text
	Color     pgtype.Text
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Alteration struct {
	ID             uuid.UUID
	Name           string
	SuggestedPrice pgtype.Numeric
	IsActive       bool
}

type Layaway struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	FolioSeq          int32
	Folio             string
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     pgtype.Text
	CustomerNotes     pgtype.Text
	EstimatedDelivery pgtype.Date
	Total             pgtype.Numeric
	TotalPaid         pgtype.Numeric
	Status            LayawayStatus
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type LayawayItem struct {
	ID             uuid.UUID
	LayawayID      uuid.UUID
	ItemType       ItemType
	VariantID      pgtype.UUID
	DisplayName    string
	Sku            pgtype.Text
	Quantity       int32
	UnitPrice      pgtype.Numeric
	Measurements   []byte
	AlterationNote pgtype.Text
	Position       int32
}

type Installment struct {
	ID         uuid.UUID
	LayawayID  uuid.UUID
	FolioSeq   int32
	Folio      string
	Amount     pgtype.Numeric
	Methods    []byte
	Notes      pgtype.Text
	AssignedTo uuid.UUID
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

type Sale struct {
	ID         uuid.UUID
	StoreID    uuid.UUID
	FolioSeq   int32
	Folio      string
	Total      pgtype.Numeric
	Methods    []byte
	AssignedTo uuid.UUID
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

type SaleItem struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	VariantID   uuid.UUID
	DisplayName string
	Sku         string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
}

type StockLevel struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
	Quantity  int32
	UpdatedAt time.Time
}

type StockTransfer struct {
	ID          uuid.UUID
	FromStoreID uuid.UUID
	ToStoreID   uuid.UUID
	VariantID   uuid.UUID
	Quantity    int32
	Notes       pgtype.Text
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}
